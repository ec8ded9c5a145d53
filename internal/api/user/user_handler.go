package user

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-users-api/internal/api"
	"github.com/FACorreiaa/go-users-api/internal/api/auth"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListUsers(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	GetCurrentUser(w http.ResponseWriter, r *http.Request)
	CreateUser(w http.ResponseWriter, r *http.Request)
	UpdateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// ListUsers godoc
// @Summary      List users
// @Description  Returns every user, newest first. Password hashes are never included.
// @Tags         User
// @Produce      json
// @Success      200 {object} api.Response{data=[]types.UserDetail} "Success"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users [get]
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ListUsers"))

	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, api.MessageSuccess, users)
}

// GetUser godoc
// @Summary      Get user
// @Description  Retrieves a single user by id.
// @Tags         User
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} api.Response{data=types.UserDetail} "Success"
// @Failure      400 {object} api.Response "Invalid user ID"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "User not found"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "GetUser"))

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, api.MessageSuccess, user)
}

// GetCurrentUser godoc
// @Summary      Current user
// @Description  Returns the user identified by the bearer token.
// @Tags         User
// @Produce      json
// @Success      200 {object} api.Response{data=types.UserDetail} "Success"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users/me [get]
func (h *HandlerImpl) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetCurrentUser"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		l.WarnContext(ctx, "User ID not found in context")
		api.Unauthorized(w, r)
		return
	}

	user, err := h.userService.GetCurrentUser(ctx, userID)
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, api.MessageSuccess, user)
}

// CreateUser godoc
// @Summary      Register user
// @Description  Creates a user. Status defaults to Active; the password is stored as a bcrypt hash.
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        user body types.CreateUserRequest true "New user"
// @Success      201 {object} api.Response{data=types.UserDetail} "User created"
// @Failure      400 {object} api.Response "Validation failed, invalid status or duplicate email"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Router       /users [post]
func (h *HandlerImpl) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "CreateUser"))

	var req types.CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode create user request", slog.Any("error", err))
		api.InvalidBody(w, r, err)
		return
	}

	user, err := h.userService.CreateUser(ctx, req)
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusCreated, "User created", user)
}

// UpdateUser godoc
// @Summary      Update user
// @Description  Replaces name, email, phone number and status. The password is left unchanged.
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        user body types.UpdateUserRequest true "Replacement fields"
// @Success      200 {object} api.Response{data=types.UserDetail} "User updated successfully."
// @Failure      400 {object} api.Response "Validation failed or invalid status"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "User not found"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users/{id} [put]
func (h *HandlerImpl) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateUser"))

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req types.UpdateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode update user request", slog.Any("error", err))
		api.InvalidBody(w, r, err)
		return
	}

	user, err := h.userService.UpdateUser(ctx, userID, req)
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, "User updated successfully.", user)
}

// DeleteUser godoc
// @Summary      Delete user
// @Tags         User
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} api.Response "User deleted"
// @Failure      400 {object} api.Response "Invalid user ID"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "User not found"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "DeleteUser"))

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(r.Context(), userID); err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, "User deleted", nil)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		api.BadRequest(w, r, "Invalid user ID")
		return 0, false
	}
	return userID, true
}
