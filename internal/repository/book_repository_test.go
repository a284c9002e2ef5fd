package repository

import (
	"encoding/json"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-catalog/internal/logging"
	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/persistence"
)

func draft(title string) model.Book {
	return model.Book{Extra: map[string]json.RawMessage{"title": json.RawMessage(`"` + title + `"`)}}
}

func TestCreateAssignsSequentialIDsFromOne(t *testing.T) {
	repo, _ := newBookRepo(t, `[]`)

	for want := int64(1); want <= 3; want++ {
		b, err := repo.Create(ctx(), draft("t"))
		require.NoError(t, err)
		assert.Equal(t, want, b.ID)
	}
}

func TestCreateIgnoresCallerID(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":4,"title":"A"}]`)

	d := draft("B")
	d.ID = 4
	b, err := repo.Create(ctx(), d)

	require.NoError(t, err)
	assert.EqualValues(t, 5, b.ID)
	assert.Equal(t, "B", b.Field("title"))
	assert.False(t, b.IsLoanedOut)
}

func TestCreateUsesMaxIDNotLastElement(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":9},{"id":2}]`)

	b, err := repo.Create(ctx(), draft("x"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, b.ID)
}

func TestCreateConcurrentIDsAreUniqueAndDense(t *testing.T) {
	repo, path := newBookRepo(t, `[]`)
	const n = 40

	var wg sync.WaitGroup
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := repo.Create(ctx(), draft("c"))
			assert.NoError(t, err)
			ids[i] = b.ID
		}(i)
	}
	wg.Wait()

	slices.Sort(ids)
	for i, id := range ids {
		assert.EqualValues(t, i+1, id)
	}

	stored := reloadBooks(t, path).List(ctx())
	require.Len(t, stored, n)
	for i, b := range stored {
		assert.EqualValues(t, i+1, b.ID, "insertion order equals id order")
	}
}

func TestCreateKeepsLoanStateAndClearsStaleLoanFields(t *testing.T) {
	repo, _ := newBookRepo(t, `[]`)

	loaned, err := repo.Create(ctx(), model.Book{IsLoanedOut: true, Loanee: "Ada", LoanDate: "d"})
	require.NoError(t, err)
	assert.True(t, loaned.IsLoanedOut)
	assert.Equal(t, "Ada", loaned.Loanee)

	avail, err := repo.Create(ctx(), model.Book{Loanee: "ghost", LoanDate: "d"})
	require.NoError(t, err)
	assert.Empty(t, avail.Loanee)
	assert.Empty(t, avail.LoanDate)
}

func TestLoanTwiceIsRejectedAndLoaneeUnchanged(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":7,"title":"Dune"}]`)

	b, err := repo.LoanOut(ctx(), 7, "Ada", "2024-05-01")
	require.NoError(t, err)
	assert.True(t, b.IsLoanedOut)

	_, err = repo.LoanOut(ctx(), 7, "Bob", "2024-05-02")
	assert.ErrorIs(t, err, ErrAlreadyLoaned)

	got, err := repo.Get(ctx(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Loanee)
	assert.Equal(t, "2024-05-01", got.LoanDate)
}

func TestReturnOfAvailableBookIsRejected(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":1}]`)

	_, err := repo.Return(ctx(), 1)
	assert.ErrorIs(t, err, ErrNotLoaned)

	got, err := repo.Get(ctx(), 1)
	require.NoError(t, err)
	assert.False(t, got.IsLoanedOut)
}

func TestReturnClearsLoanFields(t *testing.T) {
	repo, path := newBookRepo(t, `[{"id":7,"title":"Dune"}]`)

	_, err := repo.LoanOut(ctx(), 7, "Ada", "2024-05-01")
	require.NoError(t, err)
	b, err := repo.Return(ctx(), 7)

	require.NoError(t, err)
	assert.False(t, b.IsLoanedOut)
	assert.Equal(t, "", b.Loanee)
	assert.Equal(t, "", b.LoanDate)
	assert.Equal(t, "Dune", b.Field("title"))

	again, err := reloadBooks(t, path).Get(ctx(), 7)
	require.NoError(t, err)
	assert.Equal(t, b, again)

	_, err = repo.LoanOut(ctx(), 7, "Bob", "")
	assert.NoError(t, err, "a returned book can be loaned again")
}

func TestLoanAndReturnUnknownBook(t *testing.T) {
	repo, _ := newBookRepo(t, `[]`)

	_, err := repo.LoanOut(ctx(), 3, "Ada", "")
	assert.ErrorIs(t, err, ErrBookNotFound)
	_, err = repo.Return(ctx(), 3)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateMergesShallowly(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":1,"title":"Old","author":"Kept"},{"id":2,"title":"Other"}]`)

	var patch model.BookPatch
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"title":"New","year":2001}`), &patch))
	b, err := repo.Update(ctx(), patch)

	require.NoError(t, err)
	assert.EqualValues(t, 1, b.ID)
	assert.Equal(t, "New", b.Field("title"))
	assert.Equal(t, "Kept", b.Field("author"))

	other, err := repo.Get(ctx(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Other", other.Field("title"))
}

func TestUpdateErrors(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":1}]`)

	_, err := repo.Update(ctx(), model.BookPatch{"id": json.RawMessage(`42`)})
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = repo.Update(ctx(), model.BookPatch{"title": json.RawMessage(`"x"`)})
	assert.ErrorIs(t, err, ErrInvalidBook)

	_, err = repo.Update(ctx(), model.BookPatch{"id": json.RawMessage(`1`), "loanee": json.RawMessage(`5`)})
	assert.ErrorIs(t, err, ErrInvalidBook)
}

func TestDeleteRemovesExactlyOneAndIDIsNeverReused(t *testing.T) {
	repo, path := newBookRepo(t, `[{"id":1},{"id":2},{"id":3}]`)

	assert.ErrorIs(t, repo.Delete(ctx(), 99), ErrBookNotFound)
	require.NoError(t, repo.Delete(ctx(), 3))

	var ids []int64
	for _, b := range repo.List(ctx()) {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []int64{1, 2}, ids)

	b, err := repo.Create(ctx(), draft("n"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, b.ID)

	require.NoError(t, repo.Delete(ctx(), 4))
	reloaded := reloadBooks(t, path)
	b, err = reloaded.Create(ctx(), draft("after restart"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, b.ID, "high-water mark survives a restart")
}

func TestPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	repo, path := newBookRepo(t, `[{"id":1,"title":"A"},{"id":2,"isLoanedOut":true,"loanee":"Ada"}]`)
	before := repo.List(ctx())
	breakStorage(t, path)

	_, err := repo.Create(ctx(), draft("x"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, persistence.ErrIO)

	_, err = repo.LoanOut(ctx(), 1, "Bob", "")
	assert.ErrorIs(t, err, ErrPersistence)
	_, err = repo.Return(ctx(), 2)
	assert.ErrorIs(t, err, ErrPersistence)
	_, err = repo.Update(ctx(), model.BookPatch{"id": json.RawMessage(`1`), "title": json.RawMessage(`"Z"`)})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, repo.Delete(ctx(), 1), ErrPersistence)

	assert.Equal(t, before, repo.List(ctx()))
}

func TestListReturnsCopies(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":1,"title":"A"}]`)

	list := repo.List(ctx())
	list[0].Loanee = "mutated"
	list[0].Extra["title"] = json.RawMessage(`"B"`)

	got, err := repo.Get(ctx(), 1)
	require.NoError(t, err)
	assert.Empty(t, got.Loanee)
	assert.Equal(t, "A", got.Field("title"))
}

func TestNewBookRepoLoadErrors(t *testing.T) {
	_, err := NewBookRepo(persistence.NewFile[model.Book](t.TempDir()+"/missing.json"), logging.Nop())
	assert.ErrorIs(t, err, persistence.ErrIO)

	path := writeSnapshot(t, t.TempDir(), "books.json", `{"books":[]}`)
	_, err = NewBookRepo(persistence.NewFile[model.Book](path), logging.Nop())
	assert.ErrorIs(t, err, persistence.ErrFormat)

	path = writeSnapshot(t, t.TempDir(), "books.json", `[{"id":1},{"id":1}]`)
	_, err = NewBookRepo(persistence.NewFile[model.Book](path), logging.Nop())
	assert.ErrorIs(t, err, persistence.ErrFormat)
}

func TestSnapshotRoundTripKeepsRecordsAndOrder(t *testing.T) {
	repo, path := newBookRepo(t, `[{"id":3,"title":"C","isLoanedOut":true,"loanee":"Ada","loanDate":"x"},{"id":1,"title":"A","isbn":"978"}]`)
	_, err := repo.Create(ctx(), draft("D"))
	require.NoError(t, err)

	assert.Equal(t, repo.List(ctx()), reloadBooks(t, path).List(ctx()))
}

func TestConcurrentLoansOnlyOneWins(t *testing.T) {
	repo, _ := newBookRepo(t, `[{"id":1}]`)
	const n = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, rejected := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.LoanOut(ctx(), 1, "reader", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, ErrAlreadyLoaned) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, rejected)
}
