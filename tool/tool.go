// Package tool implements the function calling subsystem: a registry of
// schema-described callables (the Toolkit) plus timeout-bounded, failure
// isolated dispatch, sequential or parallel. Tool failures never surface as
// errors from the dispatcher; they are converted into error-kind responses
// the model can read.
package tool

import (
	"fmt"
	"time"

	"github.com/hupe1980/reagent/message"
)

// ToolResponse is the outcome of a single tool invocation. The error state is
// carried via metadata so a response is always a well-formed value, never an
// exception.
type ToolResponse struct {
	Content   any            `json:"content"`
	IsFinal   bool           `json:"is_final"` // false only for streaming partial chunks
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewResponse creates a final response with the given content.
func NewResponse(content any) *ToolResponse {
	return &ToolResponse{
		Content:   content,
		IsFinal:   true,
		Timestamp: time.Now().Format(message.TimestampFormat),
	}
}

// NewErrorResponse creates a final error-kind response. The content carries a
// human-readable message prefixed with "Error: " and the metadata marks the
// failure machine-readably.
func NewErrorResponse(errorMessage string) *ToolResponse {
	r := NewResponse("Error: " + errorMessage)
	r.Metadata = map[string]any{
		"error":         true,
		"error_message": errorMessage,
	}
	return r
}

// NewStreamingResponse creates a non-final partial chunk. Only meaningful for
// tools that stream output; the dispatcher passes it through untouched.
func NewStreamingResponse(content any) *ToolResponse {
	r := NewResponse(content)
	r.IsFinal = false
	return r
}

// IsError reports whether this response carries the error marker.
func (r *ToolResponse) IsError() bool {
	if r.Metadata == nil {
		return false
	}
	v, _ := r.Metadata["error"].(bool)
	return v
}

// ContentString returns the content rendered as a string ("" for nil).
func (r *ToolResponse) ContentString() string {
	if r.Content == nil {
		return ""
	}
	if s, ok := r.Content.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", r.Content)
}

// ToMap converts the response into its flat serialized form.
func (r *ToolResponse) ToMap() map[string]any {
	md := r.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return map[string]any{
		"content":   r.Content,
		"is_final":  r.IsFinal,
		"timestamp": r.Timestamp,
		"metadata":  md,
	}
}

// ResponseFromMap reconstructs a response from its ToMap form.
func ResponseFromMap(data map[string]any) *ToolResponse {
	r := NewResponse(data["content"])
	if isFinal, ok := data["is_final"].(bool); ok {
		r.IsFinal = isFinal
	}
	if ts, ok := data["timestamp"].(string); ok && ts != "" {
		r.Timestamp = ts
	}
	if md, ok := data["metadata"].(map[string]any); ok && len(md) > 0 {
		r.Metadata = md
	}
	return r
}

// String implements fmt.Stringer.
func (r *ToolResponse) String() string {
	return fmt.Sprintf("ToolResponse{content=%v, isFinal=%t, timestamp=%q}", r.Content, r.IsFinal, r.Timestamp)
}
