package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"mytodo/internal/domain/todo"
)

// Client implements todo.AttachmentStore on a Cloud Storage bucket accessed
// through the Firebase app. Objects live under a per-owner prefix
// ({userID}/{uniqueFileName}) so concurrent uploads never collide and every
// blob is attributable to its owner for deletion.
type Client struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewClient initializes the Firebase app and opens the attachment bucket.
func NewClient(ctx context.Context, credentialsFile, bucketName string) (*Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucketName}, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	storageClient, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage client: %w", err)
	}

	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketName, err)
	}

	return &Client{bucket: bucket, bucketName: bucketName}, nil
}

// Upload writes the attachment under a fresh time-plus-random key in the
// owner's namespace and returns the public URL and storage key.
func (c *Client) Upload(ctx context.Context, userID int64, filename, contentType string, data []byte) (*todo.AttachmentRef, error) {
	key := objectKey(userID, filename)

	w := c.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, &todo.UploadError{Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &todo.UploadError{Err: err}
	}

	return &todo.AttachmentRef{
		URL: fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, key),
		Key: key,
	}, nil
}

// Delete removes the blob a public URL points at, deriving the storage key
// from the URL and the owner namespace.
func (c *Client) Delete(ctx context.Context, userID int64, publicURL string) error {
	key, err := KeyFromURL(publicURL, userID)
	if err != nil {
		return &todo.DeleteError{Err: err}
	}

	if err := c.bucket.Object(key).Delete(ctx); err != nil {
		return &todo.DeleteError{Key: key, Err: err}
	}
	return nil
}

// objectKey builds {userID}/{unixMillis}-{random}{ext}. The timestamp keeps
// keys roughly sortable; the random component makes collisions from
// concurrent uploads a non-issue.
func objectKey(userID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	rand := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d/%d-%s%s", userID, time.Now().UnixMilli(), rand, ext)
}

// KeyFromURL extracts the storage key from an attachment's public URL and
// verifies it sits inside the owner's namespace.
func KeyFromURL(publicURL string, userID int64) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("invalid attachment URL: %w", err)
	}

	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	// Expect {bucket}/{userID}/{fileName}.
	if len(parts) < 3 {
		return "", fmt.Errorf("unrecognized attachment URL path %q", u.Path)
	}

	owner := parts[len(parts)-2]
	fileName := parts[len(parts)-1]
	if owner != strconv.FormatInt(userID, 10) {
		return "", fmt.Errorf("attachment does not belong to user %d", userID)
	}

	return owner + "/" + fileName, nil
}
