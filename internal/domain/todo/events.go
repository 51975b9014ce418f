package todo

// EventKind identifies a row-level change pushed by the store's feed.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// ChangeEvent is a single row change from the store's change feed.
// Insert and update carry the full new row; delete carries only the prior
// row's identity. Events are consumed exactly once and then discarded.
type ChangeEvent struct {
	Kind   EventKind
	Row    *Todo // set for insert/update
	ID     int64 // set for delete
	UserID int64
}

// Owner returns the user the event is scoped to, regardless of kind.
func (e ChangeEvent) Owner() int64 {
	if e.Row != nil {
		return e.Row.UserID
	}
	return e.UserID
}
