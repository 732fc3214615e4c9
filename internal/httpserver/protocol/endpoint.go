// Package protocol describes a bundle of routes the HTTP server mounts under one name.
package protocol

import "net/http"

type EndpointRoute struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Endpoint groups routes; Name labels them in logs and metrics.
type Endpoint interface {
	Name() string
	Routes() []EndpointRoute
}
