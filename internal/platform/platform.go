// Package platform defines the capability interface the ingestion
// pipeline consumes. The pipeline depends only on this interface, never
// on a concrete messaging platform.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// Direction tags a record as inbound or outbound.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// DataType is the tagged variant of record content.
type DataType string

const (
	DataText   DataType = "text"
	DataMedia  DataType = "media"
	DataSystem DataType = "system"
	// DataUnknown marks shapes the extractor could not classify. The
	// normalizer skips them.
	DataUnknown DataType = "unknown"
)

// RawRecord is one message-like record as extracted from the rendered
// UI, before normalization.
type RawRecord struct {
	Content       string
	Direction     Direction
	DataType      DataType
	TimestampHint string
}

// ChatInfo identifies one conversation thread exposed by the chat lister.
type ChatInfo struct {
	// ID is the stable chat identifier, derived by the platform client
	// from a platform-assigned id or from the display name.
	ID          string
	DisplayName string
	UnreadCount int
	// Handle is a platform-private token Extract uses to re-locate the
	// chat in the live UI. Opaque to the pipeline.
	Handle string
}

// Client is the capability interface implemented per platform.
type Client interface {
	// ListChats returns the chats currently visible in the UI, most
	// recent first. A fresh call re-reads the live list.
	ListChats(ctx context.Context) ([]ChatInfo, error)
	// Extract returns the raw records currently rendered for the chat.
	// May fail with a transient extraction error worth retrying.
	Extract(ctx context.Context, chat ChatInfo) ([]RawRecord, error)
}

// ExtractError describes a failed UI extraction.
type ExtractError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Op, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// TransientErr wraps err as a retryable extraction failure.
func TransientErr(op string, err error) error {
	return &ExtractError{Op: op, Transient: true, Err: err}
}

// IsTransient reports whether err is a retryable extraction failure.
func IsTransient(err error) bool {
	var ee *ExtractError
	return errors.As(err, &ee) && ee.Transient
}
