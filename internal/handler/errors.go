package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-catalog/internal/repository"
)

// message is the body of every error response.
func message(msg string) echo.Map { return echo.Map{"message": msg} }

// respondError maps a repository error to its status and message.  saveMsg
// is the message used when the write to disk failed.
func respondError(c echo.Context, logger *slog.Logger, err error, saveMsg string) error {
	switch {
	case errors.Is(err, repository.ErrBookNotFound):
		return c.JSON(http.StatusNotFound, message("Book not found"))
	case errors.Is(err, repository.ErrAlreadyLoaned):
		return c.JSON(http.StatusBadRequest, message("Book is already loaned out"))
	case errors.Is(err, repository.ErrNotLoaned):
		return c.JSON(http.StatusBadRequest, message("The book is not currently loaned out"))
	case errors.Is(err, repository.ErrInvalidBook):
		return c.JSON(http.StatusBadRequest, message("Invalid book data"))
	case errors.Is(err, repository.ErrDuplicateUser):
		return c.JSON(http.StatusBadRequest, message("Username or email already exists"))
	case errors.Is(err, repository.ErrInvalidUser):
		return c.JSON(http.StatusBadRequest, message("Username, email and password are required"))
	case errors.Is(err, repository.ErrPasswordTooLong):
		return c.JSON(http.StatusBadRequest, message("Password must be at most 72 bytes"))
	case errors.Is(err, repository.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, message("Username or password incorrect"))
	case errors.Is(err, repository.ErrPersistence):
		return c.JSON(http.StatusInternalServerError, message(saveMsg))
	default:
		logger.Error("unexpected error", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		return c.JSON(http.StatusInternalServerError, message("Internal Server Error."))
	}
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, message("Invalid request body"))
}
