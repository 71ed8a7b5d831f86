// Package models holds the record types that flow through the emoji pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Shortcode sources every record carries, in output order.
const (
	SourceCLDR    = "cldr"
	SourceGitHub  = "github"
	SourceSlack   = "slack"
	SourceDiscord = "discord"
)

// DefaultShortcodeSources lists the sources present on every record
var DefaultShortcodeSources = []string{SourceCLDR, SourceGitHub, SourceSlack, SourceDiscord}

// Shortcode is a single (code, source) pair as published upstream
type Shortcode struct {
	Code   string `json:"code"`
	Source string `json:"source"`
}

// Shortcodes maps a source name to its ordered list of codes.
// Unknown sources are kept alongside the defaults.
type Shortcodes map[string][]string

// NewShortcodes returns a map holding an empty list for each default source
func NewShortcodes() Shortcodes {
	s := make(Shortcodes, len(DefaultShortcodeSources))
	for _, source := range DefaultShortcodeSources {
		s[source] = []string{}
	}
	return s
}

// GroupShortcodes groups pairs by source, preserving input order within each
// source. The default sources are always present.
func GroupShortcodes(pairs []Shortcode) Shortcodes {
	s := NewShortcodes()
	for _, p := range pairs {
		if p.Source == "" || p.Code == "" {
			continue
		}
		s[p.Source] = append(s[p.Source], p.Code)
	}
	return s
}

// IsEmpty reports whether no source holds any code
func (s Shortcodes) IsEmpty() bool {
	for _, codes := range s {
		if len(codes) > 0 {
			return false
		}
	}
	return true
}

// MarshalJSON writes the default sources first, in their fixed order, then
// any extra sources sorted by name.
func (s Shortcodes) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(s)+len(DefaultShortcodeSources))
	keys = append(keys, DefaultShortcodeSources...)

	extra := make([]string, 0)
	for k := range s {
		if !isDefaultSource(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		codes := s[k]
		if codes == nil {
			codes = []string{}
		}
		value, err := json.Marshal(codes)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isDefaultSource(source string) bool {
	for _, d := range DefaultShortcodeSources {
		if d == source {
			return true
		}
	}
	return false
}

// Image describes the vendor rendering picked for a record
type Image struct {
	Brand    string   `json:"brand,omitempty"`
	Platform []string `json:"platform,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// IsEmpty reports whether the image carries no data
func (i Image) IsEmpty() bool {
	return i.Brand == "" && len(i.Platform) == 0 && i.Source == ""
}

// Record is one emoji entry. A freshly parsed record is a base record; after
// enrichment the same type carries the upstream data.
type Record struct {
	Category    string     `json:"category"`
	SubCategory string     `json:"sub_category"`
	Code        string     `json:"code"`
	Glyph       string     `json:"emoji"`
	Title       string     `json:"title"`
	Aliases     []string   `json:"aliases"`
	Shortcodes  Shortcodes `json:"shortcodes"`
	Tags        []string   `json:"tags"`
	Codepoints  []string   `json:"codepoints"`
	Image       Image      `json:"image"`
}

// NewRecord builds a base record from the registry fields. codeField is the
// space-separated hex sequence as it appears in the registry.
func NewRecord(category, subCategory, codeField, glyph, title string) Record {
	codepoints := CodepointsFromCode(codeField)
	return Record{
		Category:    category,
		SubCategory: subCategory,
		Code:        CodeFromCodepoints(codepoints),
		Glyph:       glyph,
		Title:       title,
		Aliases:     []string{},
		Shortcodes:  NewShortcodes(),
		Tags:        []string{},
		Codepoints:  codepoints,
		Image:       Image{},
	}
}

// Clone returns a deep copy of r
func (r Record) Clone() Record {
	out := r
	out.Aliases = append([]string{}, r.Aliases...)
	out.Tags = append([]string{}, r.Tags...)
	out.Codepoints = append([]string{}, r.Codepoints...)
	if r.Image.Platform != nil {
		out.Image.Platform = append([]string{}, r.Image.Platform...)
	}
	if r.Shortcodes != nil {
		out.Shortcodes = make(Shortcodes, len(r.Shortcodes))
		for k, v := range r.Shortcodes {
			out.Shortcodes[k] = append([]string{}, v...)
		}
	}
	return out
}

// CodepointsFromCode splits a codepoint sequence separated by spaces or
// hyphens, with or without "U+" prefixes, into "U+<HEX>" entries.
func CodepointsFromCode(code string) []string {
	fields := strings.FieldsFunc(code, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		hex := strings.TrimPrefix(strings.ToUpper(f), "U+")
		if hex == "" {
			continue
		}
		out = append(out, "U+"+hex)
	}
	return out
}

// CodeFromCodepoints joins codepoints into the lowercase hyphenated form,
// dropping any "U+" prefix.
func CodeFromCodepoints(codepoints []string) string {
	parts := make([]string, 0, len(codepoints))
	for _, cp := range codepoints {
		hex := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cp)), "U+")
		if hex == "" {
			continue
		}
		parts = append(parts, strings.ToLower(hex))
	}
	return strings.Join(parts, "-")
}
