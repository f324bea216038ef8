package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in           string
		wantEndpoint string
		wantSecure   bool
		wantErr      bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"  minio:9000 ", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://minio:9000", "minio:9000", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"http://minio:9000/foo", "", false, true},
		{"http://", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		ep, secure, err := normaliseEndpoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for input %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if ep != tt.wantEndpoint || secure != tt.wantSecure {
			t.Fatalf("normaliseEndpoint(%q) = (%q,%v), want (%q,%v)", tt.in, ep, secure, tt.wantEndpoint, tt.wantSecure)
		}
	}
}

func TestClassifyMinio(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, KindBucketNotFound},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, KindAccessDenied},
		{"bare forbidden", minio.ErrorResponse{StatusCode: http.StatusForbidden}, KindAccessDenied},
		{"internal error", minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, KindUnknown},
		{"transport error", errors.New("dial tcp: connection refused"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyMinio(tt.err); got != tt.want {
				t.Errorf("classifyMinio(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewMinioStoreRequiresCredentials(t *testing.T) {
	_, err := NewMinioStore(Options{Endpoint: "minio:9000"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "incomplete") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMinioObjectURL(t *testing.T) {
	store, err := NewMinioStore(Options{
		Endpoint:  "https://minio.example.com:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewMinioStore: %v", err)
	}
	got := store.objectURL("uploads", "docs/report 1.pdf")
	want := "https://minio.example.com:9000/uploads/docs/report%201.pdf"
	if got != want {
		t.Errorf("objectURL = %q, want %q", got, want)
	}
}

func TestMinioPutObjectUnreachable(t *testing.T) {
	store, err := NewMinioStore(Options{
		Endpoint:  "127.0.0.1:1",
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewMinioStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.PutObject(ctx, PutObjectInput{
		Bucket: "uploads",
		Key:    "a.txt",
		Body:   strings.NewReader("hello"),
		Size:   5,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if serr.Op != "put" || serr.Key != "a.txt" {
		t.Errorf("unexpected error fields: %+v", serr)
	}
}

func TestMinioPartSize(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		want  uint64
	}{
		{name: "unbounded", limit: 0, want: 64 << 20},
		{name: "tiny limit uses minimum part", limit: 1024, want: 5 << 20},
		{name: "limit between bounds", limit: 20 << 20, want: 20 << 20},
		{name: "default 100 MiB limit", limit: 100 << 20, want: 64 << 20},
		{name: "huge limit keeps part count under 10000", limit: 5 << 40, want: (5<<40 + 9999) / 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := minioPartSize(tt.limit); got != tt.want {
				t.Errorf("minioPartSize(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestMinioPutObjectUnknownSizeBuffersOnePart(t *testing.T) {
	fake := newFakeS3("uploads")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewMinioStore(Options{
		Endpoint:      srv.URL,
		AccessKey:     "minio",
		SecretKey:     "minio123",
		Region:        "us-east-1",
		MaxObjectSize: 1024,
	})
	if err != nil {
		t.Fatalf("NewMinioStore: %v", err)
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err = store.PutObject(context.Background(), PutObjectInput{
		Bucket:      "uploads",
		Key:         "a.txt",
		Body:        strings.NewReader("hello"),
		Size:        -1,
		ContentType: "text/plain",
	})
	runtime.ReadMemStats(&after)
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if delta := after.TotalAlloc - before.TotalAlloc; delta > 32<<20 {
		t.Errorf("5-byte upload allocated %d MiB", delta>>20)
	}
	if fake.parts != 1 || fake.puts != 1 {
		t.Errorf("parts = %d, completed = %d, want one of each", fake.parts, fake.puts)
	}
	if _, ok := fake.objects["a.txt"]; !ok {
		t.Error("object a.txt was not stored")
	}
}
