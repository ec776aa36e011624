package types

// InferRequest is the JSON form of POST /infer. Multipart uploads carry the
// same fields as form values with the image in the "image" file part.
type InferRequest struct {
	// Base64-encoded page image (PNG, JPEG, GIF, WebP, BMP or TIFF).
	ImageBase64 string `json:"image_base64"`
	// Instruction sent with the image. Empty uses the model default.
	// example: Convert this page to docling.
	Instruction string `json:"instruction,omitempty" example:"Convert this page to docling."`
	// Output format of the final content: doctags, markdown or html.
	// example: markdown
	Format string `json:"format,omitempty" example:"markdown"`
}

// InferChunk is one NDJSON line of a streamed /infer response. Exactly one
// of Fragment, Progress or Done is meaningful per line.
type InferChunk struct {
	// Decoded fragment, verbatim, including special tokens.
	// example: <doctag>
	Fragment string `json:"fragment,omitempty" example:"<doctag>"`
	// Aggregate model download progress in percent.
	// example: 85
	Progress *int `json:"progress,omitempty" example:"85"`
	// Set on the final line.
	Done bool `json:"done,omitempty"`
	// Final content rendered in Format. Only on the final line.
	Content string `json:"content,omitempty"`
	// example: doctags
	Format string `json:"format,omitempty" example:"doctags"`
	// Run identifier.
	// example: 0b6f6c1e-4c1b-4c47-8d1c-2f7e1e5d9a10
	RunID string `json:"run_id,omitempty"`
	// Error message if the run failed after streaming started.
	Error string `json:"error,omitempty"`
}

// EnsureResponse is returned by POST /ensure.
type EnsureResponse struct {
	// example: ready
	State string `json:"state" example:"ready"`
	// example: onnx-community/granite-docling-258M-ONNX
	ModelID string `json:"model_id" example:"onnx-community/granite-docling-258M-ONNX"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Locally cached model snapshots.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Session state: idle, loading, ready or failed.
	// example: ready
	State string `json:"state" example:"ready"`
	// example: onnx-community/granite-docling-258M-ONNX
	ModelID string `json:"model_id" example:"onnx-community/granite-docling-258M-ONNX"`
	// Compute backend chosen at startup.
	// example: accelerated
	Backend string `json:"backend" example:"accelerated"`
	// Per-component precision.
	// example: decoder_model_merged=fp32,embed_tokens=fp16,vision_encoder=fp32
	Precision string `json:"precision" example:"decoder_model_merged=fp32,embed_tokens=fp16,vision_encoder=fp32"`
	// Last aggregate download percentage, -1 before any was emitted.
	// example: 100
	Progress int `json:"progress" example:"100"`
	// Initialization error while the session is failed.
	Error string `json:"error,omitempty"`
	// Runs waiting for admission.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Runs currently generating (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Identifier of the most recently started run.
	LastRunID string `json:"last_run_id,omitempty"`
	// Total runs started since process start.
	// example: 12
	RunsTotal uint64 `json:"runs_total" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
