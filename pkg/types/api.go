package types

// CommandType discriminates controller -> worker messages.
type CommandType string

const (
	CommandLoad      CommandType = "load"
	CommandGenerate  CommandType = "generate"
	CommandInterrupt CommandType = "interrupt"
	CommandReset     CommandType = "reset"
	CommandCheck     CommandType = "check"
)

// Valid reports whether t is a known command.
func (t CommandType) Valid() bool {
	switch t {
	case CommandLoad, CommandGenerate, CommandInterrupt, CommandReset, CommandCheck:
		return true
	}
	return false
}

// Command is a message sent from the controller to the worker.
type Command struct {
	// Command type.
	// example: generate
	Type CommandType `json:"type" example:"generate"`
	// Optional correlation id; assigned by the worker when empty.
	ID string `json:"id,omitempty"`
	// Ordered turns for generate.
	Turns []ChatTurn `json:"data,omitempty"`
}

// EventStatus discriminates worker -> controller messages.
type EventStatus string

const (
	EventLoading  EventStatus = "loading"
	EventInitiate EventStatus = "initiate"
	EventProgress EventStatus = "progress"
	EventDone     EventStatus = "done"
	EventReady    EventStatus = "ready"
	EventStart    EventStatus = "start"
	EventUpdate   EventStatus = "update"
	EventComplete EventStatus = "complete"
	EventError    EventStatus = "error"
)

// Terminal reports whether the event ends a generation.
func (s EventStatus) Terminal() bool { return s == EventComplete || s == EventError }

// ErrorClass classifies failures reported through error events.
type ErrorClass string

const (
	ClassCapabilityUnavailable ErrorClass = "capability_unavailable"
	ClassResourceAcquisition   ErrorClass = "resource_acquisition"
	ClassInvalidRequest        ErrorClass = "invalid_request"
	ClassGenerationFailure     ErrorClass = "generation_failure"
)

// Event is a message emitted by the worker.
type Event struct {
	Status EventStatus `json:"status"`
	// Generation id for start/update/complete and request-scoped errors.
	ID string `json:"id,omitempty"`
	// Loading phase text or error message.
	Message string `json:"message,omitempty"`
	// Asset id for initiate/progress/done.
	File string `json:"file,omitempty"`
	// Integer percent for initiate/progress.
	Progress *int `json:"progress,omitempty"`
	// Answer text for update, final text for complete.
	Output string `json:"output,omitempty"`
	// Reasoning text for update.
	Thought string `json:"thought,omitempty"`
	// Tokens per second; absent until two tokens were produced.
	TPS *float64 `json:"tps,omitempty"`
	// Tokens produced so far.
	NumTokens int `json:"num_tokens,omitempty"`
	// thinking or answering.
	State string `json:"state,omitempty"`
	// Failure classification for error.
	Class ErrorClass `json:"class,omitempty"`
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

// CommandResponse acknowledges an accepted command.
type CommandResponse struct {
	// Correlation id of the queued command.
	ID string `json:"id"`
	// Command type.
	Type CommandType `json:"type"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Worker lifecycle state.
	// example: ready
	Status SessionStatus `json:"status" example:"ready"`
	// Model identifier served by the worker.
	// example: qwen3:0.6b
	ModelID string `json:"model_id" example:"qwen3:0.6b"`
	// Inference provider name.
	// example: ollama
	Provider string `json:"provider" example:"ollama"`
	// Whether a generation is running.
	Generating bool `json:"generating"`
	// Id of the running generation.
	ActiveID string `json:"active_id,omitempty"`
	// Whether an incremental cache from a previous turn is held.
	CacheWarm bool `json:"cache_warm"`
	// Assets still downloading.
	Progress []LoadProgress `json:"progress,omitempty"`
	// Last loader error, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the worker in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
