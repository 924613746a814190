// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest reads protocol text and candidate records from disk.
// Protocol files are plain text or Markdown, optionally carrying the YAML
// frontmatter block a PDF converter writes ahead of the body.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trial-prescreen/internal/normalize"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const frontmatterDelim = "---"

// Frontmatter is the metadata block at the top of a converted protocol.
type Frontmatter struct {
	ProtocolID  string `yaml:"protocol_id"`
	Title       string `yaml:"title"`
	SourcePDF   string `yaml:"source_pdf"`
	ConvertedAt string `yaml:"converted_at"`
}

// SplitFrontmatter separates a leading "---" delimited YAML block from the
// body. Content without a frontmatter block is returned unchanged.
func SplitFrontmatter(content string) (Frontmatter, string, error) {
	var fm Frontmatter
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(content, frontmatterDelim+"\n") && !strings.HasPrefix(content, frontmatterDelim+"\r\n") {
		return fm, content, nil
	}

	rest := content[strings.IndexByte(content, '\n')+1:]
	end := -1
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		if strings.TrimRight(line, "\r\n") == frontmatterDelim {
			end = offset
			offset += len(line)
			break
		}
		offset += len(line)
	}
	if end < 0 {
		return fm, content, nil
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return fm, content, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return fm, rest[offset:], nil
}

// ReadDocument reads a protocol file and normalizes it. The document ID and
// title come from the frontmatter when present; the ID otherwise defaults to
// the file name without extension. Options passed by the caller win over both.
func ReadDocument(path string, opts ...normalize.Option) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading protocol %s: %w", path, err)
	}

	fm, body, err := SplitFrontmatter(string(data))
	if err != nil {
		return types.Document{}, fmt.Errorf("reading protocol %s: %w", path, err)
	}

	id := fm.ProtocolID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	all := append([]normalize.Option{normalize.WithID(id), normalize.WithTitle(fm.Title)}, opts...)

	doc, err := normalize.Normalize(body, all...)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading protocol %s: %w", path, err)
	}
	return doc, nil
}

// BatchResult holds the outcome of reading several protocol files.
type BatchResult struct {
	Read   int
	Failed int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Read + r.Failed
}

// HasFailures reports whether any file could not be read.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ReadDocuments reads each path with ReadDocument, printing per-file status
// to w. Unreadable files are reported and skipped.
func ReadDocuments(paths []string, w io.Writer) ([]types.Document, BatchResult) {
	var (
		docs   []types.Document
		result BatchResult
	)
	for _, p := range paths {
		doc, err := ReadDocument(p)
		if err != nil {
			fmt.Fprintf(w, "failed: %s (%v)\n", p, err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "read:   %s (%s, ~%d pages)\n", p, doc.ID, doc.PageEstimate)
		docs = append(docs, doc)
		result.Read++
	}
	if len(paths) > 1 {
		fmt.Fprintf(w, "\nBatch summary: %d read, %d failed (total: %d)\n",
			result.Read, result.Failed, result.Total())
	}
	return docs, result
}
