package todo

import "fmt"

// MaxAttachmentSize is the upload ceiling for image attachments.
const MaxAttachmentSize = 5 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateAttachment checks a candidate attachment's MIME type and size.
// Pure check, no I/O; must pass before any upload attempt.
func ValidateAttachment(contentType string, size int64) error {
	if !allowedImageTypes[contentType] {
		return &ValidationError{Reason: fmt.Sprintf("unsupported image type %q (allowed: JPEG, PNG, GIF, WebP)", contentType)}
	}
	if size > MaxAttachmentSize {
		return &ValidationError{Reason: "image must be 5MB or less"}
	}
	if size <= 0 {
		return &ValidationError{Reason: "empty file"}
	}
	return nil
}
