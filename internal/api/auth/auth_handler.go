package auth

import (
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-users-api/internal/api"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Login godoc
// @Summary      Log in
// @Description  Exchanges an email and password for a signed access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body types.LoginRequest true "Credentials"
// @Success      200 {object} api.Response{data=types.LoginResult} "Login successful"
// @Failure      400 {object} api.Response "Invalid request body"
// @Failure      401 {object} api.Response "Invalid email or password"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Router       /users/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode login request", slog.Any("error", err))
		api.InvalidBody(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		api.HandleError(w, r, l, err)
		return
	}

	result, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}

	api.Respond(w, r, http.StatusOK, "Login successful", result)
}
