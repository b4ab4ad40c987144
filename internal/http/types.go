package http

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the response body for POST /chat.
type ChatResponse struct {
	Answer string `json:"answer"`
	// SimilarQuestions joins Related with "*".
	SimilarQuestions string   `json:"similar_questions"`
	Related          []string `json:"related"`
	SessionID        string   `json:"session_id"`
	Degraded         bool     `json:"degraded,omitempty"`
}

// ResetResponse is the response body for DELETE /chat/:session_id.
type ResetResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// AddDataRequest is the request body for POST /add-data.
type AddDataRequest struct {
	Documents []string          `json:"documents"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AddDataResponse is the response body for POST /add-data.
type AddDataResponse struct {
	Message string   `json:"message"`
	IDs     []string `json:"ids"`
}

// AddTopicRequest is the request body for POST /add-topic.
type AddTopicRequest struct {
	Topics []string `json:"topics"`
}

// AddTopicResponse is the response body for POST /add-topic.
type AddTopicResponse struct {
	Message string   `json:"message"`
	Topics  []string `json:"topics"`
}

// SimilarTopicsRequest is the request body for POST /similar-topics.
type SimilarTopicsRequest struct {
	Query string `json:"query"`
}

// SimilarTopicsResponse is the response body for POST /similar-topics.
type SimilarTopicsResponse struct {
	Topics []string `json:"topics"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Counts  StatusCounts `json:"counts"`
}

// StatusCounts reports stored state. -1 means the count could not be read.
type StatusCounts struct {
	Documents      int `json:"documents"`
	TopicDocuments int `json:"topic_documents"`
	Topics         int `json:"topics"`
	Sessions       int `json:"sessions"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
