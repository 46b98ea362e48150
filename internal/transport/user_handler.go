package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is the data of register and login responses
type AuthResponse struct {
	User          *domain.User `json:"user"`
	Token         string       `json:"token,omitempty"`
	EmailVerified bool         `json:"email_verified"`
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	frontendURL string
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler. Verification links redirect to
// frontendURL once checked.
func NewUserHandler(userService service.UserService, frontendURL string, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// RegisterRoutes registers all account routes. resendLimiter throttles the
// verification resend endpoint.
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware, resendLimiter func(http.Handler) http.Handler) {
	// Public routes
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/email/verify/{id}/{hash}", h.VerifyEmail)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", h.Logout)
		r.Get("/user", h.CurrentUser)
		r.With(resendLimiter).Post("/email/verification-notification", h.ResendVerification)
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.userService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			h.logger.Debug("Registration with taken email")
			middleware.RespondWithValidationErrors(w, map[string][]string{
				"email": {"The email has already been taken."},
			})
			return
		}

		h.logger.Error("Registration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", result.User.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusCreated,
		"User registered successfully. Please check your email for verification link.",
		AuthResponse{User: result.User, Token: result.Token, EmailVerified: false},
	)
}

// Login handles user authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			h.logger.Debug("Login failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusUnauthorized, "Invalid login credentials")
		case errors.Is(err, service.ErrEmailNotVerified):
			h.logger.Debug("Login with unverified email")
			middleware.RespondWithErrorData(w, http.StatusForbidden,
				"Email not verified. Please check your email for verification link.",
				map[string]bool{"email_verified": false},
			)
		default:
			h.logger.Error("Login failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	h.logger.Info("User logged in successfully", zap.String("user_id", result.User.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, "User logged in successfully",
		AuthResponse{User: result.User, Token: result.Token, EmailVerified: true},
	)
}

// Logout revokes the token the request was made with
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := middleware.GetTokenID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	if err := h.userService.Logout(r.Context(), tokenID); err != nil {
		h.logger.Error("Logout failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "User logged out successfully", nil)
}

// CurrentUser returns the authenticated user
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		h.logger.Error("Failed to get user", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "", AuthResponse{User: user, EmailVerified: user.HasVerifiedEmail()})
}

// VerifyEmail checks a signed link from the verification email and
// redirects to the frontend
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	already, err := h.userService.VerifyEmail(r.Context(),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "hash"),
		query.Get("expires"),
		query.Get("signature"),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidVerificationLink):
			h.logger.Debug("Invalid verification link", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadRequest, "Invalid verification link")
		case errors.Is(err, service.ErrUserNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
		default:
			h.logger.Error("Email verification failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Email verification failed")
		}
		return
	}

	target := h.frontendURL + "/email-verified?success=true"
	if already {
		target = h.frontendURL + "/email-verified?already=true"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ResendVerification emails a fresh verification link
func (h *UserHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.userService.ResendVerification(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyVerified):
			middleware.RespondWithError(w, http.StatusBadRequest, "Email already verified")
		case errors.Is(err, service.ErrUserNotFound):
			middleware.RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		default:
			h.logger.Error("Failed to resend verification email", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to send verification link")
		}
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "Verification link sent", nil)
}
