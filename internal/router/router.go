// Package router wires handlers to paths and builds the Echo instance of
// the catalog API.
package router

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-catalog/internal/handler"
)

// New returns an Echo instance with the JSON serializer, the error handler,
// the given middleware and every catalog route registered.
func New(logger *slog.Logger, books *handler.BookHandler, users *handler.UserHandler, mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = handler.JSONSerializer{}
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Use(mw...)

	RegisterRoutes(e)
	RegisterBooks(e, books)
	RegisterUsers(e, users)
	return e
}

// RegisterRoutes registers routes that are not part of the catalog itself.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooks registers the book endpoints.  Loans are accepted with POST
// and PUT.
func RegisterBooks(e *echo.Echo, h *handler.BookHandler) {
	g := e.Group("/books")
	g.GET("", h.List)
	g.POST("/add", h.Create)
	g.PUT("/update", h.Update)
	g.POST("/loan", h.Loan)
	g.PUT("/loan", h.Loan)
	g.POST("/return", h.Return)
	g.DELETE("/delete", h.Delete)
}

// RegisterUsers registers the user endpoints.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler) {
	g := e.Group("/users")
	g.GET("", h.List)
	g.POST("/create", h.Create)
	g.POST("/authenticate", h.Authenticate)
}

// ErrorHandler renders errors that reach Echo as {"message": ...}.  Unknown
// paths and known paths with the wrong method both get the generic
// not-found body.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := http.StatusInternalServerError, echo.Map{"message": "Internal Server Error."}

		var he *echo.HTTPError
		switch {
		case errors.Is(err, echo.ErrNotFound), errors.Is(err, echo.ErrMethodNotAllowed):
			code, body = http.StatusNotFound, echo.Map{"message": "Endpoint not found.", "status": "failed"}
		case errors.As(err, &he):
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				body = echo.Map{"message": msg}
			} else {
				body = echo.Map{"message": http.StatusText(code)}
			}
		default:
			logger.Error("unhandled error", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error("write error response", "error", err)
		}
	}
}
