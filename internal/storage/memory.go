package storage

import (
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var errNoSuchBucket = errors.New("the specified bucket does not exist")

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore keeps objects of a single bucket in process memory. It backs
// local development and tests; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *MemoryStore) PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error) {
	if in.Bucket != m.bucket {
		return PutObjectOutput{}, &Error{Op: "put", Bucket: in.Bucket, Key: in.Key, Kind: KindBucketNotFound, Err: errNoSuchBucket}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return PutObjectOutput{}, &Error{Op: "put", Bucket: in.Bucket, Key: in.Key, Err: errors.Wrap(err, "read body")}
	}
	if err := ctx.Err(); err != nil {
		return PutObjectOutput{}, &Error{Op: "put", Bucket: in.Bucket, Key: in.Key, Err: err}
	}

	m.mu.Lock()
	m.objects[in.Key] = memoryObject{
		data:        data,
		contentType: in.ContentType,
		modified:    m.now().UTC(),
	}
	m.mu.Unlock()

	u := url.URL{Scheme: "memory", Host: in.Bucket, Path: "/" + in.Key}
	return PutObjectOutput{Location: u.String()}, nil
}

func (m *MemoryStore) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if bucket != m.bucket {
		return nil, &Error{Op: "list", Bucket: bucket, Kind: KindBucketNotFound, Err: errNoSuchBucket}
	}

	m.mu.RLock()
	objects := []ObjectInfo{}
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:          key,
			LastModified: obj.modified,
			Size:         int64(len(obj.data)),
		})
	}
	m.mu.RUnlock()

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Object returns a stored object's content and content type.
func (m *MemoryStore) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}
