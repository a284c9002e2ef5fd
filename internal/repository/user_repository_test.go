package repository

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/library-catalog/internal/logging"
	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/persistence"
)

func newUserRepo(t *testing.T, content string) (*UserRepo, string) {
	t.Helper()
	path := writeSnapshot(t, t.TempDir(), "users.json", content)
	return reloadUsers(t, path), path
}

func reloadUsers(t *testing.T, path string) *UserRepo {
	t.Helper()
	repo, err := NewUserRepo(ctx(), persistence.NewFile[model.User](path), bcrypt.MinCost, logging.Nop())
	require.NoError(t, err)
	return repo
}

func TestUserCreateAndAuthenticate(t *testing.T) {
	repo, path := newUserRepo(t, `[]`)

	u, err := repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.PublicUser{ID: 1, Username: "ada", Email: "ada@x.io"}, u)

	got, err := repo.Authenticate(ctx(), "ada", "pw")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"pw"`)
	assert.Contains(t, string(raw), `"passwordHash"`)

	got, err = reloadUsers(t, path).Authenticate(ctx(), "ada", "pw")
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUserCreateNormalizesInput(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)

	u, err := repo.Create(ctx(), model.UserDraft{Username: "  ada ", Email: " Ada@X.io ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, "ada@x.io", u.Email)
}

func TestUserCreateRejectsDuplicates(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)
	_, err := repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	_, err = repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "other@x.io", Password: "pw"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
	_, err = repo.Create(ctx(), model.UserDraft{Username: "bob", Email: "ADA@x.io", Password: "pw"})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	assert.Len(t, repo.List(ctx()), 1)
}

func TestUserCreateRejectsMissingFields(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)

	for _, d := range []model.UserDraft{
		{Email: "a@x.io", Password: "pw"},
		{Username: "a", Password: "pw"},
		{Username: "a", Email: "a@x.io"},
		{Username: "   ", Email: "a@x.io", Password: "pw"},
	} {
		_, err := repo.Create(ctx(), d)
		assert.ErrorIs(t, err, ErrInvalidUser, "%+v", d)
	}
	assert.Empty(t, repo.List(ctx()))
}

func TestUserConcurrentDuplicateOnlyOneWins(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)
	const n = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx(), model.UserDraft{Username: "same", Email: "same@x.io", Password: "pw"})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrDuplicateUser)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, repo.List(ctx()), 1)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)
	_, err := repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)

	_, wrongPassword := repo.Authenticate(ctx(), "ada", "nope")
	_, unknownUser := repo.Authenticate(ctx(), "nobody", "pw")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestListOmitsCredentials(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)
	_, err := repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: "secret"})
	require.NoError(t, err)

	out, err := codecMarshal(repo.List(ctx()))
	require.NoError(t, err)
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, strings.ToLower(out), "password")
}

func TestLegacyPlaintextPasswordsAreHashedOnLoad(t *testing.T) {
	repo, path := newUserRepo(t, `[{"id":1,"username":"ada","email":"ada@x.io","password":"pw"}]`)

	_, err := repo.Authenticate(ctx(), "ada", "pw")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"password"`)
	assert.Contains(t, string(raw), `"passwordHash":"$2`)

	_, err = reloadUsers(t, path).Authenticate(ctx(), "ada", "pw")
	assert.NoError(t, err)
}

func TestUserCreateRejectsOverlongPassword(t *testing.T) {
	repo, _ := newUserRepo(t, `[]`)

	_, err := repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: strings.Repeat("p", 73)})
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Empty(t, repo.List(ctx()))

	_, err = repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: strings.Repeat("p", 72)})
	assert.NoError(t, err)
}

func TestOverlongLegacyPasswordDisablesLoginButLoads(t *testing.T) {
	long := strings.Repeat("p", 80)
	repo, path := newUserRepo(t, `[{"id":1,"username":"ada","email":"ada@x.io","password":"`+long+`"},`+
		`{"id":2,"username":"bob","email":"bob@x.io","password":"pw"}]`)

	_, err := repo.Authenticate(ctx(), "ada", long)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx(), "bob", "pw")
	assert.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), long)
}

func TestLegacyRewriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeSnapshot(t, dir, "users.json", `[{"id":1,"username":"ada","email":"ada@x.io","password":"pw"}]`)
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	if f, err := os.CreateTemp(dir, "w"); err == nil {
		f.Close()
		t.Skip("directory permissions are not enforced for this user")
	}

	_, err := NewUserRepo(ctx(), persistence.NewFile[model.User](path), bcrypt.MinCost, logging.Nop())
	assert.ErrorIs(t, err, persistence.ErrIO)
}

func TestUserIDsContinueFromSnapshot(t *testing.T) {
	repo, _ := newUserRepo(t, `[{"id":5,"username":"a","email":"a@x.io","passwordHash":"x"}]`)

	u, err := repo.Create(ctx(), model.UserDraft{Username: "b", Email: "b@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.EqualValues(t, 6, u.ID)
}

func TestUserPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	repo, path := newUserRepo(t, `[]`)
	breakStorage(t, path)

	_, err := repo.Create(ctx(), model.UserDraft{Username: "ada", Email: "ada@x.io", Password: "pw"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, repo.List(ctx()))

	_, err = repo.Authenticate(ctx(), "ada", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewUserRepoRejectsDuplicateRecords(t *testing.T) {
	for name, content := range map[string]string{
		"id":       `[{"id":1,"username":"a","email":"a@x.io"},{"id":1,"username":"b","email":"b@x.io"}]`,
		"username": `[{"id":1,"username":"a","email":"a@x.io"},{"id":2,"username":"a","email":"b@x.io"}]`,
		"email":    `[{"id":1,"username":"a","email":"a@x.io"},{"id":2,"username":"b","email":"A@x.io"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			path := writeSnapshot(t, t.TempDir(), "users.json", content)
			_, err := NewUserRepo(ctx(), persistence.NewFile[model.User](path), bcrypt.MinCost, logging.Nop())
			assert.ErrorIs(t, err, persistence.ErrFormat)
		})
	}
}
