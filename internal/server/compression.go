package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
)

// compressionMiddleware gzips or deflates responses for clients that accept
// it. Upload requests are passed through untouched.
func compressionMiddleware(next http.Handler) http.Handler {
	compressed := handlers.CompressHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

func shouldSkipCompression(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/upload") && r.Method == http.MethodPost
}
