package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/requests"
	"github.com/rs/zerolog"
)

type handlers struct {
	ops          filetree.TreeOperator
	maxBodyBytes int64
}

// readBody reads the whole request body, bounded by maxBodyBytes
func (h *handlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg := fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit)
			return nil, filetree.NewError(filetree.KindBadRequest, "ReadBody", "", msg, nil)
		}
		return nil, filetree.NewError(filetree.KindBadRequest, "ReadBody", "", "Failed to read request body", err)
	}
	return body, nil
}

// mutation adapts a decode + tree call pair into a handler replying with msg
func mutation[Req any](h *handlers, decode func([]byte) (*Req, error),
	apply func(*http.Request, *Req) error, msg string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())
		body, err := h.readBody(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		req, err := decode(body)
		if err != nil {
			logger.Debug().Err(err).Msg("Rejected request")
			writeError(w, err)
			return
		}
		if err := apply(r, req); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, msg)
	}
}

func (h *handlers) createFolder() http.HandlerFunc {
	return mutation(h, requests.UnmarshalCreateFolder,
		func(r *http.Request, req *filetree.CreateFolderRequest) error {
			return h.ops.CreateFolder(r.Context(), req)
		}, "Folder created successfully")
}

func (h *handlers) createFile() http.HandlerFunc {
	return mutation(h, requests.UnmarshalCreateFile,
		func(r *http.Request, req *filetree.CreateFileRequest) error {
			return h.ops.CreateFile(r.Context(), req)
		}, "File created successfully")
}

func (h *handlers) deleteFile() http.HandlerFunc {
	return mutation(h, requests.UnmarshalDeleteFile,
		func(r *http.Request, req *filetree.DeleteFileRequest) error {
			return h.ops.DeleteFile(r.Context(), req)
		}, "File deleted successfully")
}

func (h *handlers) deleteFolder() http.HandlerFunc {
	return mutation(h, requests.UnmarshalDeleteFolder,
		func(r *http.Request, req *filetree.DeleteFolderRequest) error {
			return h.ops.DeleteFolder(r.Context(), req)
		}, "Folder deleted successfully")
}

func (h *handlers) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := filetree.UserFromContext(r.Context())
	if !ok {
		writeError(w, filetree.NewError(filetree.KindUnauthorized, "GetCurrentUser", "",
			"You must be logged in to access this resource", nil))
		return
	}
	writeSuccess(w, userData{User: user})
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, filetree.NewError(filetree.KindNotFound, "Route", r.URL.Path, "Route not found", nil))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{
		Status: "error",
		Error:  errorBody{Code: "METHOD_NOT_SUPPORTED", Message: r.Method + " is not allowed on " + r.URL.Path},
	})
}
