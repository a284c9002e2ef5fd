package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/persistence"
	"github.com/iliyamo/library-catalog/internal/utils"
)

// UserRepo owns the ordered user collection.  Usernames and emails are
// unique; passwords are only ever held as bcrypt hashes.
type UserRepo struct {
	mu     sync.RWMutex
	users  []model.User
	lastID int64
	file   *persistence.File[model.User]
	cost   int
	log    *slog.Logger
}

// NewUserRepo loads the snapshot behind file.  Records that still carry a
// plaintext password are hashed on the spot and the snapshot is rewritten
// so the plaintext does not stay on disk.  If that rewrite fails the
// snapshot is treated like any other unusable one and an error is returned.
func NewUserRepo(ctx context.Context, file *persistence.File[model.User], cost int, logger *slog.Logger) (*UserRepo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	users, err := file.Load()
	if err != nil {
		return nil, err
	}

	var lastID int64
	ids := make(map[int64]bool, len(users))
	names := make(map[string]bool, len(users))
	emails := make(map[string]bool, len(users))
	upgraded := 0
	for i := range users {
		u := &users[i]
		email := normalizeEmail(u.Email)
		switch {
		case ids[u.ID]:
			return nil, fmt.Errorf("%w: %s: duplicate user id %d", persistence.ErrFormat, file.Path(), u.ID)
		case names[u.Username]:
			return nil, fmt.Errorf("%w: %s: duplicate username %q", persistence.ErrFormat, file.Path(), u.Username)
		case emails[email]:
			return nil, fmt.Errorf("%w: %s: duplicate email %q", persistence.ErrFormat, file.Path(), u.Email)
		}
		ids[u.ID], names[u.Username], emails[email] = true, true, true
		lastID = max(lastID, u.ID)

		if u.PasswordHash == "" && u.LegacyPassword != "" {
			upgraded++
			if len(u.LegacyPassword) > utils.MaxPasswordBytes {
				// Not hashable; the user can no longer log in but the
				// plaintext is still dropped from disk.
				logger.Warn("legacy password too long to hash, login disabled", "user_id", u.ID)
			} else {
				hash, err := utils.HashPassword(u.LegacyPassword, cost)
				if err != nil {
					return nil, fmt.Errorf("hash legacy password of user %d: %w", u.ID, err)
				}
				u.PasswordHash = hash
			}
		}
		u.LegacyPassword = ""
	}

	r := &UserRepo{users: users, lastID: lastID, file: file, cost: cost, log: logger}
	if upgraded > 0 {
		if err := file.Save(ctx, users); err != nil {
			return nil, fmt.Errorf("rewrite %s without plaintext passwords: %w", file.Path(), err)
		}
		logger.Info("hashed legacy plaintext passwords", "path", file.Path(), "count", upgraded)
	}
	logger.Info("users loaded", "path", file.Path(), "count", len(users), "last_id", lastID)
	return r, nil
}

// List returns every user without credentials, in creation order.
func (r *UserRepo) List(ctx context.Context) []model.PublicUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.PublicUser, len(r.users))
	for i, u := range r.users {
		out[i] = u.Public()
	}
	return out
}

// Create registers a user.  The username is trimmed and the email trimmed
// and lowercased before the uniqueness check.
func (r *UserRepo) Create(ctx context.Context, draft model.UserDraft) (model.PublicUser, error) {
	username := strings.TrimSpace(draft.Username)
	email := normalizeEmail(draft.Email)
	if username == "" || email == "" || draft.Password == "" {
		return model.PublicUser{}, ErrInvalidUser
	}
	if len(draft.Password) > utils.MaxPasswordBytes {
		return model.PublicUser{}, ErrPasswordTooLong
	}
	// bcrypt is slow on purpose; keep it outside the lock.
	hash, err := utils.HashPassword(draft.Password, r.cost)
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	taken := slices.ContainsFunc(r.users, func(u model.User) bool {
		return u.Username == username || normalizeEmail(u.Email) == email
	})
	if taken {
		return model.PublicUser{}, ErrDuplicateUser
	}

	user := model.User{ID: r.lastID + 1, Username: username, Email: email, PasswordHash: hash}
	next := append(slices.Clone(r.users), user)
	if err := r.file.Save(ctx, next); err != nil {
		r.log.Error("persist users failed", "op", "create", "user_id", user.ID, "error", err)
		return model.PublicUser{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	r.users = next
	r.lastID = user.ID
	return user.Public(), nil
}

// Authenticate returns the user whose username and password both match.
// An unknown username and a wrong password produce the same error and take
// about the same time.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string) (model.PublicUser, error) {
	r.mu.RLock()
	i := slices.IndexFunc(r.users, func(u model.User) bool { return u.Username == username })
	var user model.User
	if i >= 0 {
		user = r.users[i]
	}
	r.mu.RUnlock()

	if i < 0 || user.PasswordHash == "" {
		utils.BurnPasswordCheck(password, r.cost)
		return model.PublicUser{}, ErrInvalidCredentials
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		return model.PublicUser{}, ErrInvalidCredentials
	}
	return user.Public(), nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
