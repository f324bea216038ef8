package storage

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinioStore talks to a MinIO server (or any S3 API MinIO's client accepts).
type MinioStore struct {
	client   *minio.Client
	partSize uint64
}

// Multipart bounds for unknown-length uploads. minio-go allocates one part
// buffer per upload, so the part size is kept close to the largest object
// the gateway accepts.
const (
	minioMinPartSize = 5 << 20
	minioMaxPartSize = 64 << 20
	minioMaxParts    = 10000
)

// minioPartSize picks a part size for objects of at most limit bytes. The
// result never drops below S3's 5 MiB minimum and grows past 64 MiB only when
// limit would otherwise need more than 10000 parts.
func minioPartSize(limit int64) uint64 {
	if limit <= 0 {
		return minioMaxPartSize
	}
	size := limit
	if size < minioMinPartSize {
		size = minioMinPartSize
	}
	if size > minioMaxPartSize {
		size = minioMaxPartSize
	}
	if need := (limit + minioMaxParts - 1) / minioMaxParts; need > size {
		size = need
	}
	return uint64(size)
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, errors.Wrap(err, "parse endpoint")
		}
		if u.Host == "" {
			return "", false, errors.New("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, errors.New("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme: host:port, plain HTTP as local MinIO usually runs.
	return raw, false, nil
}

// NewMinioStore builds a MinioStore from a static key pair. The endpoint is
// required.
func NewMinioStore(opts Options) (*MinioStore, error) {
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, errors.New("minio configuration incomplete: access and secret key are required")
	}

	endpoint, secure, err := normaliseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}
	return &MinioStore{client: client, partSize: minioPartSize(opts.MaxObjectSize)}, nil
}

func (m *MinioStore) PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error) {
	info, err := m.client.PutObject(ctx, in.Bucket, in.Key, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: in.ContentType,
		PartSize:    m.partSize,
	})
	if err != nil {
		return PutObjectOutput{}, &Error{Op: "put", Bucket: in.Bucket, Key: in.Key, Kind: classifyMinio(err), Err: err}
	}

	// Single-part uploads leave Location empty.
	location := info.Location
	if location == "" {
		location = m.objectURL(in.Bucket, in.Key)
	}
	return PutObjectOutput{Location: location}, nil
}

func (m *MinioStore) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	// Cancelling stops the listing goroutine if we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := []ObjectInfo{}
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, &Error{Op: "list", Bucket: bucket, Kind: classifyMinio(obj.Err), Err: obj.Err}
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			LastModified: obj.LastModified.UTC(),
			Size:         obj.Size,
		})
	}
	return objects, nil
}

func (m *MinioStore) objectURL(bucket, key string) string {
	u := *m.client.EndpointURL()
	u.Path = "/" + bucket + "/" + key
	return u.String()
}

func classifyMinio(err error) Kind {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchBucket":
		return KindBucketNotFound
	case resp.Code == "AccessDenied", resp.StatusCode == http.StatusForbidden:
		return KindAccessDenied
	default:
		return KindUnknown
	}
}
