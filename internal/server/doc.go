// Package server implements the HTTP server and handlers for the upload
// gateway. It wires the routes, the middleware chain and the object store,
// and provides the lifecycle helpers used by tests and the production binary.
package server
