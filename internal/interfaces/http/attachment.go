package http

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"mytodo/internal/domain/todo"
	"mytodo/internal/shared/middleware"
	"mytodo/internal/sync"
)

type AttachmentHandler struct {
	sessions *sync.Manager
}

func NewAttachmentHandler(sessions *sync.Manager) *AttachmentHandler {
	return &AttachmentHandler{sessions: sessions}
}

type AttachmentResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type RemoveAttachmentRequest struct {
	URL string `json:"url"`
}

// HandleAttachments routes attachment requests
func (h *AttachmentHandler) HandleAttachments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleUpload(w, r)
	case http.MethodDelete:
		h.handleRemove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload accepts a multipart image and stores it, returning the public
// URL to attach on a later create. The body is capped slightly above the
// attachment limit so oversized uploads fail validation, not the read.
func (h *AttachmentHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, todo.MaxAttachmentSize+1024*1024)
	if err := r.ParseMultipartForm(todo.MaxAttachmentSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Error reading upload for user %d: %v", userID, err)
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	ref, err := session.UploadAttachment(r.Context(), header.Filename, contentType, data)
	if err != nil {
		log.Printf("Error uploading attachment for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AttachmentResponse{URL: ref.URL, Key: ref.Key})
}

// handleRemove deletes an uploaded blob that was never attached to a todo,
// e.g. when the user abandons a draft.
func (h *AttachmentHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req RemoveAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	if err := session.RemoveAttachment(r.Context(), req.URL); err != nil {
		log.Printf("Error removing attachment for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
