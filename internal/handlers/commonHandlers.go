package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"mirror/internal/database"
	"mirror/internal/services"
	"mirror/internal/utils"
)

type CommonHandler struct {
	db database.Service
}

func NewCommonHandler(db database.Service) *CommonHandler {
	return &CommonHandler{db: db}
}

func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := h.db.Health()
	status := http.StatusOK
	if _, down := health["error"]; down {
		status = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, status, health)
}

// writeServiceError answers with the status matching err's kind. Errors without a kind
// are infrastructure failures and are not echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInternal):
		status = http.StatusInternalServerError
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error while serving request")
		utils.SendJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	utils.SendJSONError(w, err.Error(), status)
}

func message(text string) map[string]string {
	return map[string]string{"message": text}
}
