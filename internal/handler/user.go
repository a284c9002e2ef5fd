package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/repository"
)

// UserHandler serves the /users endpoints.  Responses never carry a
// password or its hash.
type UserHandler struct {
	Users *repository.UserRepo
	Log   *slog.Logger
}

func NewUserHandler(users *repository.UserRepo, logger *slog.Logger) *UserHandler {
	if users == nil {
		panic("nil user repository passed to NewUserHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{Users: users, Log: logger}
}

type authReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// List returns every user.
func (h *UserHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Users.List(c.Request().Context()))
}

// Create registers a user.
func (h *UserHandler) Create(c echo.Context) error {
	var draft model.UserDraft
	if err := bindJSON(c, &draft); err != nil {
		return badBody(c)
	}
	user, err := h.Users.Create(c.Request().Context(), draft)
	if err != nil {
		return respondError(c, h.Log, err, "Internal Server Error. Could not save user to database.")
	}
	return c.JSON(http.StatusCreated, user)
}

// Authenticate checks a username and password pair.
func (h *UserHandler) Authenticate(c echo.Context) error {
	var req authReq
	if err := bindJSON(c, &req); err != nil {
		return badBody(c)
	}
	user, err := h.Users.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondError(c, h.Log, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Authentication successful", "user": user})
}
