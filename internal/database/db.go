// Package database opens the catalog's flat-file database: one JSON
// snapshot for books and one for users.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/persistence"
	"github.com/iliyamo/library-catalog/internal/repository"
)

// Paths locates the two snapshot files.
type Paths struct {
	Books string
	Users string
}

// DB holds the loaded collections.
type DB struct {
	Books *repository.BookRepo
	Users *repository.UserRepo
}

// Options tunes Open.
type Options struct {
	BcryptCost int
	Mirror     persistence.Mirror // nil disables snapshot mirroring
	Logger     *slog.Logger
}

func (o Options) fileOptions() []persistence.Option {
	opts := []persistence.Option{persistence.WithLogger(o.Logger)}
	if o.Mirror != nil {
		opts = append(opts, persistence.WithMirror(o.Mirror))
	}
	return opts
}

// Open loads both snapshots.  A missing or malformed file is an error;
// run Init first on a fresh installation.
func Open(ctx context.Context, paths Paths, o Options) (*DB, error) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	books, err := repository.NewBookRepo(persistence.NewFile[model.Book](paths.Books, o.fileOptions()...), o.Logger)
	if err != nil {
		return nil, fmt.Errorf("open books: %w", err)
	}
	users, err := repository.NewUserRepo(ctx, persistence.NewFile[model.User](paths.Users, o.fileOptions()...), o.BcryptCost, o.Logger)
	if err != nil {
		return nil, fmt.Errorf("open users: %w", err)
	}
	return &DB{Books: books, Users: users}, nil
}

// Init creates each snapshot that does not exist yet as an empty array and
// reports which files it created.  Existing files are left alone.
func Init(paths Paths) ([]string, error) {
	var created []string
	for _, p := range []string{paths.Books, paths.Users} {
		ok, err := persistence.NewFile[struct{}](p).Init()
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, p)
		}
	}
	return created, nil
}
