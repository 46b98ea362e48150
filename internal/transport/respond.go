package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// decodeRequest decodes and validates the JSON body into v. It writes the
// 400 or 422 response itself and reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}

	logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

	if errors.Is(err, middleware.ErrMalformedJSON) {
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}

	middleware.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

// respondFieldErrors answers service-level validation failures. It reports
// whether err was one.
func respondFieldErrors(w http.ResponseWriter, err error) bool {
	var fields service.FieldErrors
	if errors.As(err, &fields) {
		middleware.RespondWithValidationErrors(w, fields)
		return true
	}
	return false
}

// respondOutOfStock answers a stock shortfall with its product message. It
// reports whether err was one.
func respondOutOfStock(w http.ResponseWriter, err error) bool {
	var stockErr *service.OutOfStockError
	if errors.As(err, &stockErr) {
		middleware.RespondWithError(w, http.StatusUnprocessableEntity, stockErr.Error())
		return true
	}
	return false
}

// currentUser returns the authenticated caller or writes a 401
func currentUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the {id} URL parameter or writes a 404
func pathID(w http.ResponseWriter, r *http.Request, notFound string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, notFound)
		return uuid.Nil, false
	}
	return id, true
}
