// Package export writes the active goal session to JSON or PDF files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"okrdraft/internal/okr"
)

// FormatVersion is the version recorded in JSON exports.
const FormatVersion = "1.0"

// Metadata describes an export.
type Metadata struct {
	ExportDate string `json:"exportDate"`
	Version    string `json:"version"`
}

// AIResult wraps the exported goals.
type AIResult struct {
	Goals okr.GoalSet `json:"goals"`
}

// Document is the JSON export layout.
type Document struct {
	Metadata Metadata    `json:"metadata"`
	OKRData  okr.Request `json:"okrData"`
	AIResult AIResult    `json:"aiResult"`
}

// FileName returns smart-goals-YYYY-MM-DD.<ext> for the UTC date of now.
func FileName(ext string, now time.Time) string {
	return fmt.Sprintf("smart-goals-%s.%s", now.UTC().Format(okr.DateLayout), ext)
}

// NewDocument builds an export stamped with now.
func NewDocument(req okr.Request, goals okr.GoalSet, now time.Time) Document {
	if goals == nil {
		goals = okr.GoalSet{}
	}
	return Document{
		Metadata: Metadata{
			ExportDate: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Version:    FormatVersion,
		},
		OKRData:  req,
		AIResult: AIResult{Goals: goals},
	}
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// ReadJSON decodes an export written by WriteJSON.
func ReadJSON(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode export: %w", err)
	}
	return doc, nil
}
