// Package storage defines the narrow object-storage capability used by the
// HTTP layer, the error taxonomy shared by every backend, and the backends
// themselves (S3, MinIO, Google Cloud Storage and an in-memory store).
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

// ObjectStore is the capability the gateway needs from a storage provider.
type ObjectStore interface {
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// PutObjectInput describes a single object write. Size is -1 when the length
// of Body is not known up front.
type PutObjectInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

// PutObjectOutput is what the provider reports back after a write.
type PutObjectOutput struct {
	Location string
}

// ObjectInfo is the reduced view of a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"lastModified"`
	Size         int64     `json:"size"`
}

// Kind classifies storage failures the HTTP layer reports distinctly.
type Kind int

const (
	KindUnknown Kind = iota
	KindBucketNotFound
	KindAccessDenied
)

func (k Kind) String() string {
	switch k {
	case KindBucketNotFound:
		return "bucket_not_found"
	case KindAccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// Error is returned by every backend operation that fails.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	target := e.Bucket
	if e.Key != "" {
		target = e.Bucket + "/" + e.Key
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindUnknown
}
