package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/library-catalog/internal/config"
	"github.com/iliyamo/library-catalog/internal/database"
	"github.com/iliyamo/library-catalog/internal/logging"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	booksPath  string
	usersPath  string
	bcryptCost int
	jsonOutput bool
	verbose    bool
}

func (o *options) paths() database.Paths {
	return database.Paths{Books: o.booksPath, Users: o.usersPath}
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return logging.Nop()
	}
	return logging.New(logging.Config{Level: slog.LevelDebug})
}

func (o *options) open(ctx context.Context) (*database.DB, error) {
	return database.Open(ctx, o.paths(), database.Options{BcryptCost: o.bcryptCost, Logger: o.logger()})
}

func newRootCmd() *cobra.Command {
	_ = config.LoadDotEnv()
	cfg := config.Load()
	o := &options{}

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Administer the library catalog's JSON database",
		Long: `catalogctl reads and writes the books and users snapshots the catalog
server loads at startup.  Paths default to BOOKS_DB_PATH and USERS_DB_PATH.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.booksPath, "books", cfg.BooksDBPath, "books snapshot path")
	root.PersistentFlags().StringVar(&o.usersPath, "users", cfg.UsersDBPath, "users snapshot path")
	root.PersistentFlags().IntVar(&o.bcryptCost, "bcrypt-cost", cfg.BcryptCost, "bcrypt cost for new passwords")
	root.PersistentFlags().BoolVar(&o.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log repository activity to stderr")

	root.AddCommand(newInitCmd(o), newBooksCmd(o), newUsersCmd(o), newUserAddCmd(o))
	return root
}
