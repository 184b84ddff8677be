package server

import (
	"encoding/json"
	"net/http"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// Wire codes carried in error envelopes
const (
	CodeConflict     = "CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Status string    `json:"status"`
	Error  errorBody `json:"error"`
}

type messageData struct {
	Message string `json:"message"`
}

type userData struct {
	User *filetree.User `json:"user"`
}

// statusFor maps an error kind to its HTTP status and wire code
func statusFor(kind filetree.Kind) (int, string) {
	switch kind {
	case filetree.KindConflict:
		return http.StatusConflict, CodeConflict
	case filetree.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case filetree.KindInvalidPath, filetree.KindBadRequest:
		return http.StatusBadRequest, CodeBadRequest
	case filetree.KindUnauthorized:
		return http.StatusUnauthorized, CodeUnauthorized
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := util.GetLogger("server")
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successEnvelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeSuccess(w, messageData{Message: msg})
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(filetree.KindOf(err))
	writeJSON(w, status, errorEnvelope{
		Status: "error",
		Error:  errorBody{Code: code, Message: filetree.MessageOf(err)},
	})
}
