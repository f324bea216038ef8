package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const gcsPublicHost = "storage.googleapis.com"

// GCSStore talks to Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore builds a GCSStore using application default credentials. An
// endpoint override (an emulator, typically) disables authentication.
func NewGCSStore(ctx context.Context, opts Options) (*GCSStore, error) {
	var clientOpts []option.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}
	return NewGCSStoreWithClient(client), nil
}

// NewGCSStoreWithClient wraps an existing client.
func NewGCSStoreWithClient(client *gcs.Client) *GCSStore {
	return &GCSStore{client: client}
}

func (g *GCSStore) PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error) {
	// A failed body aborts the upload by cancelling the writer's context.
	// Close must not run on that path: it would commit what was written.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(in.Bucket).Object(in.Key).NewWriter(wctx)
	w.ContentType = in.ContentType
	if _, err := io.Copy(w, in.Body); err != nil {
		cancel()
		return PutObjectOutput{}, &Error{Op: "put", Bucket: in.Bucket, Key: in.Key, Kind: classifyGCS(err), Err: err}
	}
	if err := w.Close(); err != nil {
		return PutObjectOutput{}, &Error{Op: "put", Bucket: in.Bucket, Key: in.Key, Kind: classifyGCS(err), Err: err}
	}

	u := url.URL{Scheme: "https", Host: gcsPublicHost, Path: "/" + in.Bucket + "/" + in.Key}
	return PutObjectOutput{Location: u.String()}, nil
}

func (g *GCSStore) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	it := g.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &Error{Op: "list", Bucket: bucket, Kind: classifyGCS(err), Err: err}
		}
		objects = append(objects, ObjectInfo{
			Key:          attrs.Name,
			LastModified: attrs.Updated.UTC(),
			Size:         attrs.Size,
		})
	}
	return objects, nil
}

// Close releases the underlying client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

func classifyGCS(err error) Kind {
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return KindBucketNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return KindBucketNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			return KindAccessDenied
		}
	}
	return KindUnknown
}
