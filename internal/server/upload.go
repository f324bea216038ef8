package server

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"upload-gateway/internal/storage"
)

// multipartEnvelope is the body allowance on top of the file size limit for
// boundaries, part headers and small form fields.
const multipartEnvelope = 1 << 20

const defaultContentType = "application/octet-stream"

var errFileTooLarge = errors.New("file exceeds the maximum upload size")

type uploadResp struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// handleUpload handles POST /upload. The multipart field "file" is streamed
// to the object store under FolderPath + original file name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r).WithFields(logrus.Fields{
		"bucket": s.bucket,
		"folder": s.folderPath,
	})

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartEnvelope)

	part, err := filePart(r)
	if err != nil && isMaxBytes(err) {
		s.rejectTooLarge(w, log, 0)
		return
	}
	if err != nil || part == nil {
		if err != nil {
			log.WithError(err).Debug("multipart_rejected")
		}
		s.metrics.uploads.WithLabelValues(resultMissingFile).Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file uploaded"})
		return
	}
	defer func() { _ = part.Close() }()

	name := part.FileName()
	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	log = log.WithField("file", name)

	body := &sizeLimitReader{r: part, remaining: s.maxUploadBytes}
	out, err := s.store.PutObject(r.Context(), storage.PutObjectInput{
		Bucket:      s.bucket,
		Key:         s.folderPath + name,
		Body:        body,
		Size:        -1,
		ContentType: contentType,
	})
	if body.exceeded || (err != nil && isMaxBytes(err)) {
		s.rejectTooLarge(w, log, body.read)
		return
	}
	if err != nil {
		s.uploadFailed(w, log.WithField("bytes", body.read), err)
		return
	}

	log.WithFields(logrus.Fields{
		"key":      s.folderPath + name,
		"bytes":    body.read,
		"location": out.Location,
	}).Info("upload_ok")
	s.metrics.uploads.WithLabelValues(resultOK).Inc()
	s.metrics.uploadBytes.Add(float64(body.read))

	writeJSON(w, http.StatusOK, uploadResp{
		Message: "File uploaded successfully",
		URL:     out.Location,
	})
}

func (s *Server) uploadFailed(w http.ResponseWriter, log *logrus.Entry, err error) {
	kind := storage.KindOf(err)
	log.WithField("kind", kind.String()).WithError(err).Error("upload_failed")

	resp := errorResponse{Details: err.Error()}
	switch kind {
	case storage.KindBucketNotFound:
		resp.Error = "Storage bucket not found"
		s.metrics.uploads.WithLabelValues(resultBucketNotFound).Inc()
	case storage.KindAccessDenied:
		resp.Error = "Access denied to storage bucket"
		s.metrics.uploads.WithLabelValues(resultAccessDenied).Inc()
	default:
		resp.Error = "File upload to storage failed"
		s.metrics.uploads.WithLabelValues(resultError).Inc()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func (s *Server) rejectTooLarge(w http.ResponseWriter, log *logrus.Entry, read int64) {
	log.WithFields(logrus.Fields{
		"bytes": read,
		"limit": s.maxUploadBytes,
	}).Warn("upload_too_large")
	s.metrics.uploads.WithLabelValues(resultTooLarge).Inc()
	writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
		Error:   "File too large",
		Details: errFileTooLarge.Error(),
	})
}

// filePart returns the first "file" part that carries a file name, or nil if
// the form has none. Other parts are skipped.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func isMaxBytes(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// sizeLimitReader passes through at most remaining bytes and fails with
// errFileTooLarge as soon as the source holds more.
type sizeLimitReader struct {
	r         io.Reader
	remaining int64
	read      int64
	exceeded  bool
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errFileTooLarge
	}
	// Ask for one byte past the limit so an exact fit is not mistaken for
	// an overflow.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		n = int(l.remaining)
		l.read += int64(n)
		l.remaining = 0
		l.exceeded = true
		return n, errFileTooLarge
	}
	l.remaining -= int64(n)
	l.read += int64(n)
	return n, err
}
