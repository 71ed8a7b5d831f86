package storage

import (
	"encoding/json"
	"fmt"

	"emojidb/internal/models"
)

// RecordColumns holds the JSON-encoded collection columns of a record row
type RecordColumns struct {
	Aliases    string
	Shortcodes string
	Tags       string
	Codepoints string
	Image      string
}

// EncodeColumns encodes the collection fields of rec for storage
func EncodeColumns(rec models.Record) (RecordColumns, error) {
	var cols RecordColumns
	fields := []struct {
		dest  *string
		value interface{}
		name  string
	}{
		{&cols.Aliases, nonNil(rec.Aliases), "aliases"},
		{&cols.Shortcodes, rec.Shortcodes, "shortcodes"},
		{&cols.Tags, nonNil(rec.Tags), "tags"},
		{&cols.Codepoints, nonNil(rec.Codepoints), "codepoints"},
		{&cols.Image, rec.Image, "image"},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.value)
		if err != nil {
			return cols, fmt.Errorf("failed to encode %s: %w", f.name, err)
		}
		*f.dest = string(data)
	}
	return cols, nil
}

// DecodeColumns fills the collection fields of rec from stored JSON
func DecodeColumns(rec *models.Record, cols RecordColumns) error {
	fields := []struct {
		raw  string
		dest interface{}
		name string
	}{
		{cols.Aliases, &rec.Aliases, "aliases"},
		{cols.Shortcodes, &rec.Shortcodes, "shortcodes"},
		{cols.Tags, &rec.Tags, "tags"},
		{cols.Codepoints, &rec.Codepoints, "codepoints"},
		{cols.Image, &rec.Image, "image"},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.name, err)
		}
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
