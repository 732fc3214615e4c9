package ollama

// GenerateRequest is the body sent to /api/generate.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateChunk is one NDJSON record of a streamed /api/generate response.
// Ollama sends more fields (model, created_at, eval counters); only these two drive the relay.
type GenerateChunk struct {
	Response string `json:"response,omitempty"`
	Done     bool   `json:"done"`
}

// TagsResponse is the body of /api/tags; used only as a reachability probe.
type TagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
