package todo

import "context"

// Repository defines row access against the backing store.
// All operations are scoped to one owner; the store enforces that a user
// only ever sees their own rows.
type Repository interface {
	ListByOwner(ctx context.Context, userID int64) ([]*Todo, error)
	Create(ctx context.Context, userID int64, params CreateTodoParams) (*Todo, error)
	UpdateText(ctx context.Context, id int64, text string) (*Todo, error)
	// SetCompleted is a partial update: only the completion column changes.
	SetCompleted(ctx context.Context, id int64, completed bool) (*Todo, error)
	Delete(ctx context.Context, id int64) error
}

// Feed delivers row change events for one owner, in the order the store
// emits them. The returned channel is closed when the subscription ends.
type Feed interface {
	Subscribe(ctx context.Context, userID int64) (<-chan ChangeEvent, func(), error)
}

// AttachmentRef points at an uploaded attachment: the public URL handed to
// clients and the storage key used for later deletion.
type AttachmentRef struct {
	URL string
	Key string
}

// AttachmentStore is the blob collaborator for image attachments.
// Keys are namespaced per owner: {userID}/{uniqueFileName}.
type AttachmentStore interface {
	Upload(ctx context.Context, userID int64, filename, contentType string, data []byte) (*AttachmentRef, error)
	Delete(ctx context.Context, userID int64, url string) error
}
