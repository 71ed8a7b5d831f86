package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"emojidb/internal/models"
	"emojidb/internal/storage"
)

// Sink is a destination for resolved records
type Sink interface {
	Write(ctx context.Context, rec models.Record) error
	Close() error
}

// JSONArraySink streams records as one indented JSON array.
//
// The opening bracket is written on creation and every record is flushed as
// it arrives, so an interrupted run leaves a prefix of the array on disk.
// Close terminates the array.
type JSONArraySink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	count  int
	closed bool
}

// NewJSONArraySink writes the array header to w
func NewJSONArraySink(w io.Writer) (*JSONArraySink, error) {
	s := &JSONArraySink{w: bufio.NewWriter(w)}
	if _, err := s.w.WriteString("[\n"); err != nil {
		return nil, fmt.Errorf("failed to write array header: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write array header: %w", err)
	}
	return s, nil
}

// CreateJSONFileSink creates (or truncates) path and writes the array header
func CreateJSONFileSink(path string) (*JSONArraySink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	s, err := NewJSONArraySink(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	s.closer = file
	return s, nil
}

// Write appends one record to the array
func (s *JSONArraySink) Write(_ context.Context, rec models.Record) error {
	entry, err := encodeEntry(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.Code, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sink is closed")
	}
	if s.count > 0 {
		if _, err := s.w.WriteString(",\n"); err != nil {
			return fmt.Errorf("failed to write separator: %w", err)
		}
	}
	if _, err := s.w.Write(entry); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.Code, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush record %s: %w", rec.Code, err)
	}
	s.count++
	return nil
}

// Count returns the number of records written
func (s *JSONArraySink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close writes the closing bracket and closes the file, if the sink owns one.
// Closing twice is a no-op.
func (s *JSONArraySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, err := s.w.WriteString("\n]")
	if err == nil {
		err = s.w.Flush()
	}
	if s.closer != nil {
		if closeErr := s.closer.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}
	return nil
}

// encodeEntry renders rec indented by two spaces, with glyphs and '&' kept
// literal
func encodeEntry(rec models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// StoreSink mirrors records into a RecordStore under one run id
type StoreSink struct {
	store storage.RecordStore
	runID string
}

// NewStoreSink creates a sink writing to store for runID
func NewStoreSink(store storage.RecordStore, runID string) *StoreSink {
	return &StoreSink{store: store, runID: runID}
}

// Write upserts the record
func (s *StoreSink) Write(ctx context.Context, rec models.Record) error {
	if err := s.store.UpsertRecord(ctx, s.runID, rec); err != nil {
		return fmt.Errorf("failed to store record %s: %w", rec.Code, err)
	}
	return nil
}

// Close leaves the store open; its owner closes it
func (s *StoreSink) Close() error {
	return nil
}

// MultiSink fans each record out to its sinks in order
type MultiSink []Sink

// Write stops at the first failing sink
func (m MultiSink) Write(ctx context.Context, rec models.Record) error {
	for _, sink := range m {
		if err := sink.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the first error
func (m MultiSink) Close() error {
	var first error
	for _, sink := range m {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
