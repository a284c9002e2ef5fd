package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/queue"
	"github.com/iliyamo/library-catalog/internal/repository"
	"github.com/iliyamo/library-catalog/internal/service"
)

const publishTimeout = 3 * time.Second

// BookHandler serves the /books endpoints.
type BookHandler struct {
	Books  *repository.BookRepo
	Events service.Publisher
	Log    *slog.Logger
}

// NewBookHandler panics on a nil repository; a nil publisher or logger is
// replaced with a no-op or the default logger.
func NewBookHandler(books *repository.BookRepo, events service.Publisher, logger *slog.Logger) *BookHandler {
	if books == nil {
		panic("nil book repository passed to NewBookHandler")
	}
	if events == nil {
		events = service.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{Books: books, Events: events, Log: logger}
}

type loanReq struct {
	BookID   *int64 `json:"bookId"`
	Loanee   string `json:"loanee"`
	LoanDate string `json:"loanDate"`
}

type returnReq struct {
	BookID *int64 `json:"bookId"`
}

// List returns every book.
func (h *BookHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Books.List(c.Request().Context()))
}

// Create adds a book.  Any id in the body is ignored, whatever its type,
// and replaced by a fresh one.
func (h *BookHandler) Create(c echo.Context) error {
	var body model.BookPatch
	if err := bindJSON(c, &body); err != nil || body == nil {
		return badBody(c)
	}
	draft, err := body.ApplyTo(model.Book{})
	if err != nil {
		return badBody(c)
	}
	book, err := h.Books.Create(c.Request().Context(), draft)
	if err != nil {
		return respondError(c, h.Log, err, "Internal Server Error. Could not save book to database.")
	}
	return c.JSON(http.StatusCreated, book)
}

// Update merges the body onto the book named by its id member.
func (h *BookHandler) Update(c echo.Context) error {
	var patch model.BookPatch
	if err := bindJSON(c, &patch); err != nil {
		return badBody(c)
	}
	book, err := h.Books.Update(c.Request().Context(), patch)
	if err != nil {
		return respondError(c, h.Log, err, "Internal Server Error. Could not update book in database.")
	}
	return c.JSON(http.StatusOK, book)
}

// Loan lends a book to the loanee in the body.
func (h *BookHandler) Loan(c echo.Context) error {
	var req loanReq
	if err := bindJSON(c, &req); err != nil {
		return badBody(c)
	}
	req.Loanee = strings.TrimSpace(req.Loanee)
	if req.BookID == nil || req.Loanee == "" {
		return c.JSON(http.StatusBadRequest, message("bookId and loanee are required"))
	}
	ctx := c.Request().Context()
	book, err := h.Books.LoanOut(ctx, *req.BookID, req.Loanee, req.LoanDate)
	if err != nil {
		return respondError(c, h.Log, err, "Internal Server Error. Could not loan out book.")
	}
	h.publish(ctx, queue.NewLoanEvent(queue.TypeBookLoaned, book.ID, book.Field("title"), book.Loanee, book.LoanDate))
	return c.JSON(http.StatusOK, book)
}

// Return takes a loaned book back.
func (h *BookHandler) Return(c echo.Context) error {
	var req returnReq
	if err := bindJSON(c, &req); err != nil {
		return badBody(c)
	}
	if req.BookID == nil {
		return c.JSON(http.StatusBadRequest, message("bookId is required"))
	}
	ctx := c.Request().Context()
	book, err := h.Books.Return(ctx, *req.BookID)
	if err != nil {
		return respondError(c, h.Log, err, "Internal Server Error. Could not return book.")
	}
	h.publish(ctx, queue.NewLoanEvent(queue.TypeBookReturned, book.ID, book.Field("title"), "", ""))
	return c.JSON(http.StatusOK, book)
}

// Delete removes the book given by the id query parameter.
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.QueryParam("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, message("Invalid book id"))
	}
	if err := h.Books.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err, "Internal Server Error. Could not delete book from database.")
	}
	return c.JSON(http.StatusOK, message("Book deleted"))
}

// publish sends ev and only logs a failure; the loan change is already on disk.
func (h *BookHandler) publish(ctx context.Context, ev queue.LoanEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.Events.PublishLoanEvent(ctx, ev); err != nil {
		h.Log.Warn("loan event not published", "type", ev.Type, "book_id", ev.BookID, "error", err)
	}
}
