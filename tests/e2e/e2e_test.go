//go:build e2e

// End-to-end test of the upload and listing flow against a real MinIO
// container started with dockertest. The gateway runs in-process and talks to
// MinIO through both the minio and the s3 backends.
//
// Requires Docker. Run:
//
//	go test -tags e2e -v ./tests/e2e
//
// UPLOAD_GATEWAY_MINIO_TAG overrides the MinIO image tag.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upload-gateway/internal/config"
	"upload-gateway/internal/logging"
	"upload-gateway/internal/server"
	"upload-gateway/internal/storage"
)

const (
	minioUser   = "minio"
	minioSecret = "minio123"
	bucket      = "testbucket"
)

func startMinio(t *testing.T) string {
	t.Helper()
	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not connect to docker")
	pool.MaxWait = 2 * time.Minute

	tag := os.Getenv("UPLOAD_GATEWAY_MINIO_TAG")
	if tag == "" {
		tag = "RELEASE.2024-01-31T20-20-33Z"
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        tag,
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=" + minioUser,
			"MINIO_ROOT_PASSWORD=" + minioSecret,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	require.NoError(t, err, "could not start minio")
	t.Cleanup(func() { _ = pool.Purge(resource) })

	endpoint := "localhost:" + resource.GetPort("9000/tcp")
	err = pool.Retry(func() error {
		resp, err := http.Get("http://" + endpoint + "/minio/health/live")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("minio not ready: %d", resp.StatusCode)
		}
		return nil
	})
	require.NoError(t, err, "minio not ready")

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioUser, minioSecret, ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.NoError(t, mc.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}))
	return endpoint
}

func newGateway(t *testing.T, opts storage.Options, folder string) *httptest.Server {
	t.Helper()
	store, err := storage.New(context.Background(), opts)
	require.NoError(t, err)

	srv := server.New(server.Config{
		App: config.Config{
			Region:         opts.Region,
			BucketName:     opts.Bucket,
			FolderPath:     folder,
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadBytes: 1 << 20,
			Backend:        opts.Backend,
		},
		Store:  store,
		Logger: logging.Discard(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, baseURL, filename string, data []byte) (int, map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func list(t *testing.T, baseURL string) []storage.ObjectInfo {
	t.Helper()
	resp, err := http.Get(baseURL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var objects []storage.ObjectInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&objects))
	return objects
}

func TestUploadAndListFlow(t *testing.T) {
	endpoint := startMinio(t)

	backends := []struct {
		name   string
		opts   storage.Options
		folder string
	}{
		{
			name: "minio",
			opts: storage.Options{
				Backend:   storage.BackendMinio,
				Region:    "us-east-1",
				Endpoint:  endpoint,
				AccessKey: minioUser,
				SecretKey: minioSecret,
				Bucket:    bucket,

				MaxObjectSize: 1 << 20,
			},
			folder: "via-minio/",
		},
		{
			name: "s3",
			opts: storage.Options{
				Backend:   storage.BackendS3,
				Region:    "us-east-1",
				Endpoint:  "http://" + endpoint,
				AccessKey: minioUser,
				SecretKey: minioSecret,
				Bucket:    bucket,

				MaxObjectSize: 1 << 20,
			},
			folder: "via-s3/",
		},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ts := newGateway(t, b.opts, b.folder)

			assert.Empty(t, list(t, ts.URL))

			payload := []byte("hello from the " + b.name + " backend")
			status, body := upload(t, ts.URL, "greeting.txt", payload)
			require.Equal(t, http.StatusOK, status, body)
			assert.Equal(t, "File uploaded successfully", body["message"])
			assert.Contains(t, body["url"], bucket+"/"+b.folder+"greeting.txt")

			status, _ = upload(t, ts.URL, "second.txt", []byte("2"))
			require.Equal(t, http.StatusOK, status)

			objects := list(t, ts.URL)
			require.Len(t, objects, 2)
			assert.Equal(t, b.folder+"greeting.txt", objects[0].Key)
			assert.EqualValues(t, len(payload), objects[0].Size)
			assert.WithinDuration(t, time.Now(), objects[0].LastModified, time.Minute)
			assert.Equal(t, b.folder+"second.txt", objects[1].Key)
		})
	}
}

func TestMissingBucket(t *testing.T) {
	endpoint := startMinio(t)

	ts := newGateway(t, storage.Options{
		Backend:   storage.BackendMinio,
		Region:    "us-east-1",
		Endpoint:  endpoint,
		AccessKey: minioUser,
		SecretKey: minioSecret,
		Bucket:    "does-not-exist",
	}, "")

	status, body := upload(t, ts.URL, "a.txt", []byte("a"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Storage bucket not found", body["error"])

	resp, err := http.Get(ts.URL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
