package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ValidationFailedMessage is the envelope message for 422 responses
const ValidationFailedMessage = "Validation Error"

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// RespondWithSuccess wraps data in a successful envelope
func RespondWithSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	RespondWithJSON(w, statusCode, Response{Success: true, Message: message, Data: data})
}

// RespondWithError sends a failed envelope carrying only a message
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, Response{Success: false, Message: message})
}

// RespondWithErrorData sends a failed envelope with extra data, such as the
// client secret of a payment that needs customer action
func RespondWithErrorData(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	RespondWithJSON(w, statusCode, Response{Success: false, Message: message, Data: data})
}

// RespondWithValidationErrors sends a 422 with messages keyed by field
func RespondWithValidationErrors(w http.ResponseWriter, errors map[string][]string) {
	RespondWithJSON(w, http.StatusUnprocessableEntity, Response{
		Success: false,
		Message: ValidationFailedMessage,
		Errors:  errors,
	})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.Stack("stack"),
					)

					RespondWithError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
