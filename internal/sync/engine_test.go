package sync

import (
	"testing"

	"mytodo/internal/domain/todo"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func seedEngine(items ...todo.Todo) *engine {
	e := newEngine()
	ptrs := make([]*todo.Todo, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	e.replaceAll(ptrs)
	return e
}

func ids(items []todo.Todo) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestEngine_ApplyLocalInsert(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "existing"})

	cmd := e.applyLocalInsert(todo.CreateTodoParams{Text: "new item"})
	if cmd.tempID >= 0 {
		t.Errorf("placeholder id = %d, want negative", cmd.tempID)
	}

	snap := e.snapshot()
	if len(snap) != 2 {
		t.Fatalf("collection size = %d, want 2", len(snap))
	}
	if snap[0].ID != cmd.tempID || snap[0].Text != "new item" {
		t.Errorf("placeholder not prepended: got %+v", snap[0])
	}

	// Placeholder ids must not repeat within a session.
	cmd2 := e.applyLocalInsert(todo.CreateTodoParams{Text: "another"})
	if cmd2.tempID == cmd.tempID {
		t.Errorf("placeholder id %d reused", cmd.tempID)
	}
}

func TestEngine_ConfirmInsert_ReplacesPlaceholder(t *testing.T) {
	e := newEngine()
	cmd := e.applyLocalInsert(todo.CreateTodoParams{Text: "buy milk"})

	e.confirmInsert(cmd, &todo.Todo{ID: 42, Text: "buy milk"})

	snap := e.snapshot()
	if len(snap) != 1 {
		t.Fatalf("collection size = %d, want 1", len(snap))
	}
	if snap[0].ID != 42 {
		t.Errorf("confirmed id = %d, want 42", snap[0].ID)
	}
}

func TestEngine_ConfirmInsert_FeedEchoArrivedFirst(t *testing.T) {
	e := newEngine()
	cmd := e.applyLocalInsert(todo.CreateTodoParams{Text: "buy milk"})

	// The feed delivered the insert before the store call returned.
	e.applyRemoteEvent(todo.ChangeEvent{
		Kind: todo.EventInsert,
		Row:  &todo.Todo{ID: 42, Text: "buy milk"},
	})
	e.confirmInsert(cmd, &todo.Todo{ID: 42, Text: "buy milk"})

	snap := e.snapshot()
	if len(snap) != 1 {
		t.Fatalf("collection size = %d, want 1 (placeholder dropped)", len(snap))
	}
	if snap[0].ID != 42 {
		t.Errorf("kept id = %d, want 42", snap[0].ID)
	}
}

func TestEngine_ConfirmInsert_PlaceholderGone(t *testing.T) {
	e := newEngine()
	cmd := e.applyLocalInsert(todo.CreateTodoParams{Text: "buy milk"})
	e.rollback(cmd)

	e.confirmInsert(cmd, &todo.Todo{ID: 42, Text: "buy milk"})

	snap := e.snapshot()
	if len(snap) != 1 || snap[0].ID != 42 {
		t.Errorf("confirmed row missing after placeholder vanished: %v", ids(snap))
	}
}

func TestEngine_FieldChangeAndRollback(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "original", Completed: false})

	cmd := e.applyLocalFieldChange(1, todo.UpdateTodoParams{Text: strPtr("edited")})
	if cmd == nil {
		t.Fatal("applyLocalFieldChange returned nil for known id")
	}
	if got := e.lookup(1).Text; got != "edited" {
		t.Errorf("text after change = %q, want %q", got, "edited")
	}

	e.rollback(cmd)
	if got := e.lookup(1).Text; got != "original" {
		t.Errorf("text after rollback = %q, want %q", got, "original")
	}
}

func TestEngine_FieldChange_UnknownID(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "only"})

	if cmd := e.applyLocalFieldChange(99, todo.UpdateTodoParams{Completed: boolPtr(true)}); cmd != nil {
		t.Errorf("applyLocalFieldChange(99) = %+v, want nil", cmd)
	}
}

func TestEngine_FieldChangeRollback_OnlyTouchedFields(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "original", Completed: false})

	cmd := e.applyLocalFieldChange(1, todo.UpdateTodoParams{Completed: boolPtr(true)})

	// Another writer edits the text while the toggle is in flight.
	e.applyRemoteEvent(todo.ChangeEvent{
		Kind: todo.EventUpdate,
		Row:  &todo.Todo{ID: 1, Text: "remote edit", Completed: true},
	})

	e.rollback(cmd)
	item := e.lookup(1)
	if item.Completed {
		t.Error("completed not restored by rollback")
	}
	if item.Text != "remote edit" {
		t.Errorf("rollback clobbered untouched field: text = %q", item.Text)
	}
}

func TestEngine_FieldChangeRollback_ItemDeletedRemotely(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "original"})

	cmd := e.applyLocalFieldChange(1, todo.UpdateTodoParams{Text: strPtr("edited")})
	e.applyRemoteEvent(todo.ChangeEvent{Kind: todo.EventDelete, ID: 1})

	// Rollback of a field change on a deleted item must not resurrect it.
	e.rollback(cmd)
	if len(e.snapshot()) != 0 {
		t.Errorf("rollback resurrected deleted item: %v", ids(e.snapshot()))
	}
}

func TestEngine_DeleteAndRollback(t *testing.T) {
	e := seedEngine(
		todo.Todo{ID: 2, Text: "second"},
		todo.Todo{ID: 1, Text: "first"},
	)

	cmd := e.applyLocalDelete(2)
	if cmd == nil {
		t.Fatal("applyLocalDelete returned nil for known id")
	}
	if e.lookup(2) != nil {
		t.Error("item still present after optimistic delete")
	}

	e.rollback(cmd)
	if e.lookup(2) == nil {
		t.Error("item not restored after delete rollback")
	}
	if e.lookup(2).Text != "second" {
		t.Errorf("restored text = %q, want %q", e.lookup(2).Text, "second")
	}
}

func TestEngine_DeleteRollback_AlreadyReinserted(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "first"})

	cmd := e.applyLocalDelete(1)
	e.applyRemoteEvent(todo.ChangeEvent{
		Kind: todo.EventInsert,
		Row:  &todo.Todo{ID: 1, Text: "re-created"},
	})

	e.rollback(cmd)
	snap := e.snapshot()
	if len(snap) != 1 {
		t.Fatalf("duplicate after delete rollback: %v", ids(snap))
	}
	if snap[0].Text != "re-created" {
		t.Errorf("rollback overwrote newer row: text = %q", snap[0].Text)
	}
}

func TestEngine_ApplyRemoteEvent(t *testing.T) {
	tests := []struct {
		name        string
		seed        []todo.Todo
		event       todo.ChangeEvent
		wantChanged bool
		wantIDs     []int64
	}{
		{
			name:        "insert prepends",
			seed:        []todo.Todo{{ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventInsert, Row: &todo.Todo{ID: 2}},
			wantChanged: true,
			wantIDs:     []int64{2, 1},
		},
		{
			name:        "duplicate insert is a no-op",
			seed:        []todo.Todo{{ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventInsert, Row: &todo.Todo{ID: 1}},
			wantChanged: false,
			wantIDs:     []int64{1},
		},
		{
			name:        "update overwrites in place",
			seed:        []todo.Todo{{ID: 2}, {ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventUpdate, Row: &todo.Todo{ID: 1, Text: "new"}},
			wantChanged: true,
			wantIDs:     []int64{2, 1},
		},
		{
			name:        "update for unknown id is a no-op",
			seed:        []todo.Todo{{ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventUpdate, Row: &todo.Todo{ID: 9}},
			wantChanged: false,
			wantIDs:     []int64{1},
		},
		{
			name:        "delete removes",
			seed:        []todo.Todo{{ID: 2}, {ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventDelete, ID: 2},
			wantChanged: true,
			wantIDs:     []int64{1},
		},
		{
			name:        "delete for absent id is a no-op",
			seed:        []todo.Todo{{ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventDelete, ID: 9},
			wantChanged: false,
			wantIDs:     []int64{1},
		},
		{
			name:        "insert without row is ignored",
			seed:        []todo.Todo{{ID: 1}},
			event:       todo.ChangeEvent{Kind: todo.EventInsert},
			wantChanged: false,
			wantIDs:     []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := seedEngine(tt.seed...)

			changed := e.applyRemoteEvent(tt.event)
			if changed != tt.wantChanged {
				t.Errorf("applyRemoteEvent changed = %v, want %v", changed, tt.wantChanged)
			}

			got := ids(e.snapshot())
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestEngine_RemoteUpdateOverwritesOptimisticChange(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "original"})

	e.applyLocalFieldChange(1, todo.UpdateTodoParams{Text: strPtr("local edit")})
	e.applyRemoteEvent(todo.ChangeEvent{
		Kind: todo.EventUpdate,
		Row:  &todo.Todo{ID: 1, Text: "remote wins"},
	})

	if got := e.lookup(1).Text; got != "remote wins" {
		t.Errorf("text = %q, want remote value", got)
	}
}

func TestEngine_ReplaceAll(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1}, todo.Todo{ID: 2})

	e.replaceAll([]*todo.Todo{{ID: 9, Text: "fresh"}})

	snap := e.snapshot()
	if len(snap) != 1 || snap[0].ID != 9 {
		t.Errorf("snapshot after replaceAll = %v", ids(snap))
	}
}

func TestEngine_SnapshotIsACopy(t *testing.T) {
	e := seedEngine(todo.Todo{ID: 1, Text: "original"})

	snap := e.snapshot()
	snap[0].Text = "mutated"

	if got := e.lookup(1).Text; got != "original" {
		t.Errorf("snapshot mutation leaked into collection: %q", got)
	}
}
