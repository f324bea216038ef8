package server

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"upload-gateway/internal/storage"
)

type fileEntry struct {
	Key          string `json:"key"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size"`
}

// handleListFiles handles GET /files. It returns every object under the
// configured folder path as a JSON array of {key, lastModified, size}.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	objects, err := s.store.ListObjects(r.Context(), s.bucket, s.folderPath)
	if err != nil {
		s.requestLogger(r).WithFields(logrus.Fields{
			"bucket": s.bucket,
			"folder": s.folderPath,
			"kind":   storage.KindOf(err).String(),
		}).WithError(err).Error("list_failed")
		s.metrics.lists.WithLabelValues(resultError).Inc()
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to list files from storage",
			Details: err.Error(),
		})
		return
	}
	entries := make([]fileEntry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, fileEntry{
			Key:          obj.Key,
			LastModified: obj.LastModified.UTC().Format(timestampLayout),
			Size:         obj.Size,
		})
	}
	s.metrics.lists.WithLabelValues(resultOK).Inc()
	writeJSON(w, http.StatusOK, entries)
}
