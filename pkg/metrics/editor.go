package metrics

import "time"

// Upload outcomes reported through RecordUploadFinished.
const (
	UploadCompleted = "completed"
	UploadAborted   = "aborted"
	UploadFailed    = "failed"
)

// Transfer directions reported through RecordBytesTransferred.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// EditorMetrics provides observability for the file editor handler.
//
// This interface is optional - if not provided to the editor, a no-op
// implementation is used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewEditorMetrics()
//	handler := editor.New(fs, cfg, m)
//
//	// Without metrics (no-op)
//	handler := editor.New(fs, cfg, nil)
type EditorMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - operation: "list", "read", "stats", "delete", "mkdir", "create", "upload"
	//   - status: HTTP status code sent to the client
	//   - duration: Time taken to process the request
	RecordRequest(operation string, status int, duration time.Duration)

	// RecordBytesTransferred records bytes served or stored.
	//
	// Parameters:
	//   - direction: DirectionRead or DirectionWrite
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// RecordUploadStarted counts an upload session entering Writing.
	RecordUploadStarted()

	// RecordUploadFinished counts a session leaving Writing.
	//
	// Parameters:
	//   - outcome: UploadCompleted, UploadAborted or UploadFailed
	RecordUploadFinished(outcome string)

	// SetActiveUploads updates the number of open upload handles.
	SetActiveUploads(count int)
}

// NewNoopEditorMetrics returns an EditorMetrics that discards everything.
func NewNoopEditorMetrics() EditorMetrics {
	return noopEditorMetrics{}
}

type noopEditorMetrics struct{}

func (noopEditorMetrics) RecordRequest(operation string, status int, duration time.Duration) {}
func (noopEditorMetrics) RecordBytesTransferred(direction string, bytes int64)              {}
func (noopEditorMetrics) RecordUploadStarted()                                              {}
func (noopEditorMetrics) RecordUploadFinished(outcome string)                               {}
func (noopEditorMetrics) SetActiveUploads(count int)                                        {}
