package api

const (
	EndPointData    = "/api/data"
	EndPointHealth  = "/health"
	EndPointMetrics = "/metrics"

	// Viewer endpoints, served by the client process.
	EndPointViewerIndex  = "/"
	EndPointViewerSubmit = "/api/submit"
	EndPointViewerStop   = "/api/stop"
	EndPointViewerStatus = "/api/status"
	EndPointViewerCanvas = "/canvas.png"
	EndPointViewerListen = "/ws"
)

const (
	ContentTypeOctetStream = "application/octet-stream"
	QueryCount             = "count"

	// HeaderChunkPoints carries the number of points per chunk of a stream.
	HeaderChunkPoints = "X-Chunk-Points"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
	Time    string `json:"time"`
}

type SubmitArgs struct {
	Count string `json:"count" form:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Message is one line of the client's log panel.
type Message struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Status is the consumer state pushed to viewer clients.
type Status struct {
	SessionID       uint64  `json:"session_id"`
	Total           int     `json:"total"`
	Received        int     `json:"received"`
	Chunks          int     `json:"chunks"`
	Progress        float64 `json:"progress"`
	ProgressDisplay string  `json:"progress_display"`
	Loading         bool    `json:"loading"`
}

type StatusResponse struct {
	Status   Status    `json:"status"`
	Messages []Message `json:"messages"`
}

// BroadcastMessage is the envelope for websocket pushes.
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}
