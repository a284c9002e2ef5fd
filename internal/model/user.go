package model

// User is a registry record as persisted.  PasswordHash is a bcrypt hash.
//
// LegacyPassword only exists to read snapshots written before passwords
// were hashed; it is never written back (see repository.NewUserRepo).
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	PasswordHash   string `json:"passwordHash,omitempty"`
	LegacyPassword string `json:"password,omitempty"`
}

// PublicUser is the projection of a user that leaves the process.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public strips credentials from u.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

// UserDraft is the input for registering a user.
type UserDraft struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
