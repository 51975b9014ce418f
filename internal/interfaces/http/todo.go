package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"mytodo/internal/domain/todo"
	"mytodo/internal/shared/middleware"
	"mytodo/internal/sync"
)

type TodoHandler struct {
	sessions *sync.Manager
}

func NewTodoHandler(sessions *sync.Manager) *TodoHandler {
	return &TodoHandler{sessions: sessions}
}

// Request/Response DTOs

type CreateTodoRequest struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

type UpdateTodoRequest struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

type TodoResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TodoListResponse struct {
	Todos    []TodoResponse `json:"todos"`
	Loading  bool           `json:"loading"`
	LiveSync bool           `json:"liveSync"`
}

func toTodoResponse(t *todo.Todo) TodoResponse {
	return TodoResponse{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		ImageURL:  t.ImageURL,
		Pending:   t.ID < 0,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTodoListResponse(items []todo.Todo, loading, live bool) TodoListResponse {
	resp := TodoListResponse{
		Todos:    make([]TodoResponse, 0, len(items)),
		Loading:  loading,
		LiveSync: live,
	}
	for i := range items {
		resp.Todos = append(resp.Todos, toTodoResponse(&items[i]))
	}
	return resp
}

// writeTodoError maps domain errors onto HTTP status codes.
func writeTodoError(w http.ResponseWriter, err error) {
	var validationErr *todo.ValidationError
	var storeErr *todo.StoreWriteError
	var uploadErr *todo.UploadError
	var deleteErr *todo.DeleteError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Reason, http.StatusBadRequest)
	case errors.Is(err, todo.ErrTodoNotFound):
		http.Error(w, "Todo not found", http.StatusNotFound)
	case errors.As(err, &storeErr):
		http.Error(w, "Store write failed", http.StatusBadGateway)
	case errors.As(err, &uploadErr):
		http.Error(w, "Attachment upload failed", http.StatusBadGateway)
	case errors.As(err, &deleteErr):
		http.Error(w, "Attachment removal failed", http.StatusBadGateway)
	case errors.Is(err, sync.ErrManagerClosed):
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleTodos routes collection-level requests
func (h *TodoHandler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListTodos(w, r)
	case http.MethodPost:
		h.handleCreateTodo(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTodoByID routes requests for a single todo
func (h *TodoHandler) HandleTodoByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPatch:
		h.handleUpdateTodo(w, r)
	case http.MethodDelete:
		h.handleDeleteTodo(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleListTodos returns the session's reconciled collection
func (h *TodoHandler) handleListTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	if err := session.Ready(r.Context()); err != nil {
		writeTodoError(w, err)
		return
	}
	items, loading, err := session.Snapshot(r.Context())
	if err != nil {
		log.Printf("Error reading snapshot for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	live := session.LiveSync(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTodoListResponse(items, loading, live))
}

// handleCreateTodo creates a new todo
func (h *TodoHandler) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding create todo request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	created, err := session.Create(r.Context(), todo.CreateTodoParams{
		Text:     req.Text,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		log.Printf("Error creating todo for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTodoResponse(created))
}

// handleUpdateTodo edits text or flips completion on an existing todo
func (h *TodoHandler) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	todoID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid todo ID", http.StatusBadRequest)
		return
	}

	var req UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding update todo request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == nil && req.Completed == nil {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	if err := session.Ready(r.Context()); err != nil {
		writeTodoError(w, err)
		return
	}

	var updated *todo.Todo
	if req.Text != nil {
		updated, err = session.UpdateText(r.Context(), todoID, *req.Text)
		if err != nil {
			log.Printf("Error updating todo %d for user %d: %v", todoID, userID, err)
			writeTodoError(w, err)
			return
		}
	}
	if req.Completed != nil {
		updated, err = session.SetCompletion(r.Context(), todoID, *req.Completed)
		if err != nil {
			log.Printf("Error toggling todo %d for user %d: %v", todoID, userID, err)
			writeTodoError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTodoResponse(updated))
}

// handleDeleteTodo deletes a todo and its attachment
func (h *TodoHandler) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	todoID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid todo ID", http.StatusBadRequest)
		return
	}

	session, release, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		log.Printf("Error acquiring session for user %d: %v", userID, err)
		writeTodoError(w, err)
		return
	}
	defer release()

	if err := session.Ready(r.Context()); err != nil {
		writeTodoError(w, err)
		return
	}

	if err := session.Delete(r.Context(), todoID); err != nil {
		log.Printf("Error deleting todo %d for user %d: %v", todoID, userID, err)
		writeTodoError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
