// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the prescreen pipeline:
// the normalized protocol Document, extracted eligibility Criteria, screened
// Candidates, and the per-candidate and per-batch results.
//
// Values of these types are produced once and treated as read-only by every
// stage that consumes them.
package types

// Document is a normalized unit of protocol text.
type Document struct {
	// ID is an opaque identifier, generated when the caller does not supply one.
	ID string `json:"id" yaml:"id"`

	// Title is derived from the first non-blank line unless supplied.
	Title string `json:"title" yaml:"title"`

	// Text is the full trimmed body. It is never empty.
	Text string `json:"text" yaml:"text"`

	// PageEstimate is max(1, ceil(len(Text) / CharsPerPage)).
	PageEstimate int `json:"page_estimate" yaml:"page_estimate"`
}

// CharsPerPage is the number of characters counted as one page of protocol text.
const CharsPerPage = 3000
