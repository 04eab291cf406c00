package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/storage"
)

// Response is the stable envelope every JSON endpoint answers with:
// status "success" with a payload, or status "error" with a message.
type Response struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Response any    `json:"response,omitempty"`
}

func writeResponse(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(Response{Status: "success", Response: body})
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	w.Write(b)
}

func writeErrorResponse(w http.ResponseWriter, status int, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b, marshalErr := json.Marshal(Response{Status: "error", Error: msg})
	if marshalErr != nil {
		http.Error(w, msg, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// statusForError maps repository and taxonomy errors onto HTTP codes.
func statusForError(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.ErrKindNotFound:
		return http.StatusNotFound
	case domain.ErrKindInvalidMedia, domain.ErrKindSerialization:
		return http.StatusBadRequest
	case domain.ErrKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
