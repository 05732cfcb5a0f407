package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	ContentType     = "Content-Type"
	ApplicationJson = "application/json"
)

type (
	ErrorResponse struct {
		Message string `json:"message"`
	}

	ResponseWriter struct {
		LogErr func(format string, args ...interface{})
	}
)

var ErrRecordNotFound = errors.New("not found")

func (rw *ResponseWriter) logError(err error) {
	if rw.LogErr != nil {
		rw.LogErr("%v", err)
	}
}

func (rw *ResponseWriter) WriteResponse(w http.ResponseWriter, data any) {
	w.Header().Set(ContentType, ApplicationJson)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rw.logError(fmt.Errorf("failed to encode response data as json: %w", err))
	}
}

func (rw *ResponseWriter) WriteErrorResponse(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRecordNotFound) {
		rw.ErrorResponse(w, http.StatusNotFound, err)
		return
	}
	rw.ErrorResponse(w, http.StatusInternalServerError, err)
	rw.logError(err)
}

func (rw *ResponseWriter) InvalidParamResponse(w http.ResponseWriter, name string, err error) {
	rw.ErrorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid parameter %q: %w", name, err))
}

func (rw *ResponseWriter) ErrorResponse(w http.ResponseWriter, code int, err error) {
	w.Header().Set(ContentType, ApplicationJson)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()}); err != nil {
		rw.logError(fmt.Errorf("failed to encode error response as json: %w", err))
	}
}
