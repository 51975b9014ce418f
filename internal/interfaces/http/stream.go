package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"mytodo/internal/shared/middleware"
	"mytodo/internal/sync"
)

const streamHeartbeat = 25 * time.Second

type StreamHandler struct {
	sessions *sync.Manager
}

func NewStreamHandler(sessions *sync.Manager) *StreamHandler {
	return &StreamHandler{sessions: sessions}
}

// HandleStream serves the todo collection over server-sent events. Every
// reconciled change pushes a fresh snapshot; the session stays alive for as
// long as at least one stream holds it.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	updates, cancel, err := session.Watch(r.Context())
	if err != nil {
		log.Printf("Error watching session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case items, open := <-updates:
			if !open {
				return
			}
			live := session.LiveSync(r.Context())
			payload, err := json.Marshal(toTodoListResponse(items, false, live))
			if err != nil {
				log.Printf("Error encoding stream payload for user %d: %v", userID, err)
				continue
			}
			fmt.Fprintf(w, "event: todos\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
