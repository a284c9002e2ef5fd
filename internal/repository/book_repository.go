package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/persistence"
)

// BookRepo owns the ordered book collection.  Every mutation runs
// check, build, persist and swap under one write lock, so concurrent calls
// behave as if they ran one after another.  The stored slice is never
// modified in place: a failed write leaves it exactly as it was.
type BookRepo struct {
	mu     sync.RWMutex
	books  []model.Book
	lastID int64 // highest id ever assigned, including deleted books
	file   *persistence.File[model.Book]
	log    *slog.Logger
}

// NewBookRepo loads the snapshot behind file.  A missing or malformed
// snapshot is returned as an error; the caller decides whether that is fatal.
func NewBookRepo(file *persistence.File[model.Book], logger *slog.Logger) (*BookRepo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	books, err := file.Load()
	if err != nil {
		return nil, err
	}
	var lastID int64
	seen := make(map[int64]bool, len(books))
	for _, b := range books {
		if seen[b.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate book id %d", persistence.ErrFormat, file.Path(), b.ID)
		}
		seen[b.ID] = true
		lastID = max(lastID, b.ID)
	}
	seq, ok, err := file.LoadSequence()
	if err != nil {
		return nil, err
	}
	if ok {
		lastID = max(lastID, seq)
	}
	logger.Info("books loaded", "path", file.Path(), "count", len(books), "last_id", lastID)
	return &BookRepo{books: books, lastID: lastID, file: file, log: logger}, nil
}

// List returns a copy of every book in creation order.
func (r *BookRepo) List(ctx context.Context) []model.Book {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Book, len(r.books))
	for i, b := range r.books {
		out[i] = b.Clone()
	}
	return out
}

// Get returns the book with id.
func (r *BookRepo) Get(ctx context.Context, id int64) (model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.Book{}, ErrBookNotFound
	}
	return r.books[i].Clone(), nil
}

// Create stores draft under a fresh id and returns the stored record.  Any
// id in the draft is ignored.
func (r *BookRepo) Create(ctx context.Context, draft model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book := draft.Clone()
	book.ID = r.lastID + 1
	book.Normalize()

	if err := r.file.SaveSequence(book.ID); err != nil {
		return model.Book{}, r.persistErr("create", book.ID, err)
	}
	next := append(slices.Clone(r.books), book)
	if err := r.commit(ctx, "create", book.ID, next); err != nil {
		return model.Book{}, err
	}
	r.lastID = book.ID
	return book.Clone(), nil
}

// Update merges the members present in patch onto the stored book with the
// patch's id.  Absent members keep their value; the id never changes.
func (r *BookRepo) Update(ctx context.Context, patch model.BookPatch) (model.Book, error) {
	id, err := patch.ID()
	if err != nil {
		return model.Book{}, fmt.Errorf("%w: %w", ErrInvalidBook, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Book{}, ErrBookNotFound
	}
	merged, err := patch.ApplyTo(r.books[i])
	if err != nil {
		return model.Book{}, fmt.Errorf("%w: %w", ErrInvalidBook, err)
	}
	merged.Normalize()

	next := slices.Clone(r.books)
	next[i] = merged
	if err := r.commit(ctx, "update", id, next); err != nil {
		return model.Book{}, err
	}
	return merged.Clone(), nil
}

// LoanOut moves an available book to the Loaned state.
func (r *BookRepo) LoanOut(ctx context.Context, id int64, loanee, loanDate string) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Book{}, ErrBookNotFound
	}
	if r.books[i].IsLoanedOut {
		return model.Book{}, ErrAlreadyLoaned
	}

	book := r.books[i].Clone()
	book.IsLoanedOut = true
	book.Loanee = loanee
	book.LoanDate = loanDate

	next := slices.Clone(r.books)
	next[i] = book
	if err := r.commit(ctx, "loan", id, next); err != nil {
		return model.Book{}, err
	}
	return book.Clone(), nil
}

// Return moves a loaned book back to Available and clears its loan details.
func (r *BookRepo) Return(ctx context.Context, id int64) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Book{}, ErrBookNotFound
	}
	if !r.books[i].IsLoanedOut {
		return model.Book{}, ErrNotLoaned
	}

	book := r.books[i].Clone()
	book.IsLoanedOut = false
	book.Normalize()

	next := slices.Clone(r.books)
	next[i] = book
	if err := r.commit(ctx, "return", id, next); err != nil {
		return model.Book{}, err
	}
	return book.Clone(), nil
}

// Delete removes the book with id.  Its id is not handed out again.
func (r *BookRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrBookNotFound
	}
	next := slices.Delete(slices.Clone(r.books), i, i+1)
	return r.commit(ctx, "delete", id, next)
}

// indexOf returns the position of id or -1.  Callers hold r.mu.
func (r *BookRepo) indexOf(id int64) int {
	return slices.IndexFunc(r.books, func(b model.Book) bool { return b.ID == id })
}

// commit writes next and makes it current.  Callers hold the write lock.
func (r *BookRepo) commit(ctx context.Context, op string, id int64, next []model.Book) error {
	if err := r.file.Save(ctx, next); err != nil {
		return r.persistErr(op, id, err)
	}
	r.books = next
	r.log.Debug("books saved", "op", op, "book_id", id, "count", len(next))
	return nil
}

func (r *BookRepo) persistErr(op string, id int64, err error) error {
	r.log.Error("persist books failed", "op", op, "book_id", id, "error", err)
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
