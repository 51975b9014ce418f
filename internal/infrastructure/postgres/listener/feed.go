package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"mytodo/internal/domain/todo"
)

const (
	channelName       = "todo_changes"
	reconnectInterval = 5 * time.Second
	subscriberBuffer  = 64
)

// rowPayload mirrors the row_to_json output of the todos table triggers.
type rowPayload struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// notifyPayload is the JSON the trigger function sends over pg_notify.
type notifyPayload struct {
	Op  string     `json:"op"`
	Row rowPayload `json:"row"`
}

// TodoFeed listens for row-change notifications on the todos table and fans
// them out to per-owner subscriptions, preserving arrival order. It satisfies
// todo.Feed. Reconnecting after transport loss is handled internally by
// pq.Listener plus the outer retry loop; subscribers just keep receiving.
type TodoFeed struct {
	connStr string

	mu      sync.Mutex
	subs    map[int64]map[int]chan todo.ChangeEvent
	nextSub int
	closed  bool

	shutdownCh chan struct{}
	done       chan struct{}
}

func NewTodoFeed(connStr string) *TodoFeed {
	return &TodoFeed{
		connStr:    connStr,
		subs:       make(map[int64]map[int]chan todo.ChangeEvent),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine.
func (f *TodoFeed) Start(ctx context.Context) {
	go f.listen(ctx)
	log.Println("Todo change feed started")
}

// Stop gracefully shuts down the feed and closes all subscriptions.
func (f *TodoFeed) Stop() {
	close(f.shutdownCh)
	<-f.done

	f.mu.Lock()
	f.closed = true
	for owner, chans := range f.subs {
		for id, ch := range chans {
			close(ch)
			delete(chans, id)
		}
		delete(f.subs, owner)
	}
	f.mu.Unlock()

	log.Println("Todo change feed stopped")
}

// Subscribe opens an event stream scoped to one owner's rows. The cancel
// func closes the stream; the channel is also closed when the feed stops.
func (f *TodoFeed) Subscribe(ctx context.Context, userID int64) (<-chan todo.ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, nil, fmt.Errorf("feed is stopped")
	}

	ch := make(chan todo.ChangeEvent, subscriberBuffer)
	id := f.nextSub
	f.nextSub++

	if f.subs[userID] == nil {
		f.subs[userID] = make(map[int]chan todo.ChangeEvent)
	}
	f.subs[userID][id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if chans, ok := f.subs[userID]; ok {
			if c, ok := chans[id]; ok {
				delete(chans, id)
				close(c)
			}
			if len(chans) == 0 {
				delete(f.subs, userID)
			}
		}
	}

	return ch, cancel, nil
}

func (f *TodoFeed) listen(ctx context.Context) {
	defer close(f.done)

	for {
		select {
		case <-f.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			f.connectAndListen(ctx)
		}

		select {
		case <-f.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Println("Reconnecting to PostgreSQL for todo notifications...")
		}
	}
}

func (f *TodoFeed) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(f.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("Feed listener error: %v", err)
		}
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("Connected to todo notification channel")
		case pq.ListenerEventDisconnected:
			log.Println("Disconnected from todo notification channel")
		case pq.ListenerEventReconnected:
			log.Println("Reconnected to todo notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("Feed connection attempt failed: %v", err)
		}
	})

	defer listener.Close()

	if err := listener.Listen(channelName); err != nil {
		log.Printf("Failed to listen on channel %s: %v", channelName, err)
		return
	}

	log.Printf("Listening on channel: %s", channelName)

	for {
		select {
		case <-f.shutdownCh:
			return
		case <-ctx.Done():
			return
		case notification := <-listener.Notify:
			if notification == nil {
				// Connection lost, break to reconnect
				return
			}
			f.dispatch(notification)
		case <-time.After(90 * time.Second):
			// Ping to keep connection alive
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("Feed listener ping failed: %v", err)
				}
			}()
		}
	}
}

func (f *TodoFeed) dispatch(notification *pq.Notification) {
	var payload notifyPayload
	if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
		log.Printf("Failed to parse todo notification payload: %v", err)
		return
	}

	event, ok := toEvent(payload)
	if !ok {
		log.Printf("Unknown todo notification op %q", payload.Op)
		return
	}

	f.mu.Lock()
	chans := make([]chan todo.ChangeEvent, 0, len(f.subs[event.Owner()]))
	for _, ch := range f.subs[event.Owner()] {
		chans = append(chans, ch)
	}
	f.mu.Unlock()

	// Sends preserve per-subscriber arrival order. Sessions drain quickly;
	// a full buffer means a consumer is gone, so drop rather than stall
	// every other subscriber behind it.
	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			log.Printf("Dropping todo event for slow subscriber (user %d)", event.Owner())
		}
	}
}

func toEvent(payload notifyPayload) (todo.ChangeEvent, bool) {
	row := &todo.Todo{
		ID:        payload.Row.ID,
		UserID:    payload.Row.UserID,
		Text:      payload.Row.Text,
		Completed: payload.Row.Completed,
		ImageURL:  payload.Row.ImageURL,
		CreatedAt: payload.Row.CreatedAt,
		UpdatedAt: payload.Row.UpdatedAt,
	}

	switch payload.Op {
	case "INSERT":
		return todo.ChangeEvent{Kind: todo.EventInsert, Row: row}, true
	case "UPDATE":
		return todo.ChangeEvent{Kind: todo.EventUpdate, Row: row}, true
	case "DELETE":
		return todo.ChangeEvent{Kind: todo.EventDelete, ID: row.ID, UserID: row.UserID}, true
	}
	return todo.ChangeEvent{}, false
}
