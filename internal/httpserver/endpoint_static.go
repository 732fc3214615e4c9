package httpserver

import (
	"net/http"

	"github.com/tokligence/chatrelay/internal/httpserver/protocol"
)

// staticEndpoint serves the browser chat page and its assets.
type staticEndpoint struct {
	server *Server
}

func newStaticEndpoint(server *Server) protocol.Endpoint {
	return &staticEndpoint{server: server}
}

func (e *staticEndpoint) Name() string { return "static" }

func (e *staticEndpoint) Routes() []protocol.EndpointRoute {
	files := http.FileServer(http.Dir(e.server.staticDir))
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/*", Handler: files},
		{Method: http.MethodHead, Path: "/*", Handler: files},
	}
}
