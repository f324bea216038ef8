package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Supported backend names.
const (
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Backends lists every backend name accepted by New.
var Backends = []string{BackendS3, BackendMinio, BackendGCS, BackendMemory}

// Options carries what a backend needs to build its client.
type Options struct {
	Backend   string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// Bucket is only consulted by the memory backend, which serves a
	// single bucket.
	Bucket string

	// MaxObjectSize is the largest object the caller will write. Backends
	// that buffer unknown-length uploads size their buffers from it; zero
	// means no known bound.
	MaxObjectSize int64
}

// New builds the ObjectStore named by opts.Backend.
func New(ctx context.Context, opts Options) (ObjectStore, error) {
	switch opts.Backend {
	case BackendS3, "":
		return NewS3Store(opts)
	case BackendMinio:
		return NewMinioStore(opts)
	case BackendGCS:
		return NewGCSStore(ctx, opts)
	case BackendMemory:
		return NewMemoryStore(opts.Bucket), nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", opts.Backend)
	}
}
