package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmorrow/taskhub-api/internal/api/shared"
	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
	"github.com/cmorrow/taskhub-api/internal/service/auth"
	"github.com/cmorrow/taskhub-api/internal/store"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	users      store.UserStore
	jwtService auth.JWTService
	hasher     auth.PasswordHasher
	verifier   auth.PasswordVerifier
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users store.UserStore,
	jwtService auth.JWTService,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	log *slog.Logger,
) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		hasher:     hasher,
		verifier:   verifier,
		logger:     log.With(slog.String("component", "auth_handler")),
	}
}

// Register handles user registration requests.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOrDefault(ctx, h.logger)

	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := domain.NewUser(req.Email, req.Name, req.Password, role)
	if err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "")
		return
	}

	hashed, err := h.hasher.Hash(user.Password)
	if err != nil {
		log.Error("failed to hash password", "error", err)
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to register user", err)
		return
	}
	user.HashedPassword = hashed
	user.Password = ""

	if err := h.users.Create(ctx, user); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("user registered",
		"user_id", user.ID,
		"role", string(user.Role))

	h.respondWithTokens(w, r, user, http.StatusCreated)
}

// Login handles user login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOrDefault(ctx, h.logger)

	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Same response as a wrong password so emails cannot be probed.
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Error("failed to look up user for login", "error", err)
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	if err := h.verifier.Compare(user.HashedPassword, req.Password); err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	log.Info("user logged in", "user_id", user.ID)

	h.respondWithTokens(w, r, user, http.StatusOK)
}

// RefreshToken exchanges a valid refresh token for a new token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOrDefault(ctx, h.logger)

	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// The user must still exist; tokens issued before deletion stay useless.
	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		log.Error("failed to look up user for token refresh", "error", err)
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to refresh token", err)
		return
	}

	accessToken, refreshToken, expiresAt, err := h.issueTokens(r, user)
	if err != nil {
		log.Error("failed to issue tokens", "error", err, "user_id", user.ID)
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to refresh token", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
}

// respondWithTokens issues a fresh token pair for the user and writes the
// auth response with the given status.
func (h *AuthHandler) respondWithTokens(
	w http.ResponseWriter,
	r *http.Request,
	user *domain.User,
	status int,
) {
	accessToken, refreshToken, expiresAt, err := h.issueTokens(r, user)
	if err != nil {
		h.logger.Error("failed to issue tokens", "error", err, "user_id", user.ID)
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to generate tokens", err)
		return
	}

	shared.RespondWithJSON(w, r, status, AuthResponse{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
}

func (h *AuthHandler) issueTokens(
	r *http.Request,
	user *domain.User,
) (accessToken, refreshToken string, expiresAt time.Time, err error) {
	ctx := r.Context()

	accessToken, err = h.jwtService.GenerateToken(ctx, user.ID)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refreshToken, err = h.jwtService.GenerateRefreshToken(ctx, user.ID)
	if err != nil {
		return "", "", time.Time{}, err
	}

	expiresAt = time.Now().UTC().Add(h.jwtService.AccessTokenLifetime())
	return accessToken, refreshToken, expiresAt, nil
}
