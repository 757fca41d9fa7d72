package httphandlers

import (
	"encoding/json"
	"geohost/internal/misc"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"net/http"
)

const (
	actorHeader = "X-User-ID"
)

type (
	response struct {
		Error   bool        `json:"error"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
)

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err)
}

func serverError(w http.ResponseWriter, err error) {
	logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err)
}

func unauthorized(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, err)
}

func forbidden(w http.ResponseWriter, err error) {
	writeError(w, http.StatusForbidden, err)
}

func notFound(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, err)
}

// writeServiceError maps the error taxonomy of the services to a status code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrForbidden):
		forbidden(w, err)
	case errors.Is(err, types.ErrValidation):
		badRequest(w, err)
	case errors.Is(err, types.ErrNotFound):
		notFound(w, err)
	default:
		serverError(w, err)
	}
}

func ok(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	r := response{
		Error:   false,
		Message: message,
		Data:    data,
	}
	b, _ := json.Marshal(r)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, errorCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorCode)
	errmsg := ""
	if err != nil {
		errmsg = err.Error()
	}

	r := response{
		Error:   true,
		Message: errmsg,
	}
	data, _ := json.Marshal(r)
	_, _ = w.Write(data)
}

func writeSSELine(w http.ResponseWriter, data interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, _ = w.Write(bytes)
	_, _ = w.Write(misc.Seperator)
	flusher, ok := w.(http.Flusher)
	if ok {
		flusher.Flush()
	}
	return nil
}
