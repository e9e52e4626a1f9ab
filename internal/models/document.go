// Package models defines the domain types for Raido.
package models

// Document is one in-memory editor document.
//
// Content and Metadata are fixed for the lifetime of the process. Metadata
// carries the per-document authoring key and is never serialized to the view.
type Document struct {
	URI      string `json:"uri"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
	Version  string `json:"version"`
	Metadata string `json:"-"`
}

// MetadataEntry pairs a document identity with its private metadata.
type MetadataEntry struct {
	URI      string
	Metadata string
}
