package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// errorResponse — тело ответа с ошибкой; message всегда на французском.
type errorResponse struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("malformed request")

func encodeJSON(payload interface{}) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"Une erreur est survenue. Veuillez réessayer."}`)
	}
	return body
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	writeBody(w, status, encodeJSON(payload))
}

func respondWithMessage(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}

// respondWithError переводит ошибку в код и сообщение для покупателя.
func respondWithError(w http.ResponseWriter, err error) {
	status, message := describeError(err)
	respondWithMessage(w, status, message)
}

func describeError(err error) (int, string) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "Requête invalide."
	}
	return statusFor(err), domain.UserMessage(err)
}

func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrProductUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCartPersist), errors.Is(err, domain.ErrOrderPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
