// Package document loads uploaded files into plain text for chunking.
// The parser is selected by file extension; anything unrecognized falls
// back to a raw text read.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrParse indicates an unsupported or corrupt document.
var ErrParse = errors.New("document parse failed")

// Document is the parsed form of an uploaded file. It lives only long
// enough to be split into chunks and is never persisted.
type Document struct {
	Name string // base name of the source file
	Text string // extracted plain text
}

type loaderFunc func(path string) (string, error)

// loaders maps normalized extensions to parsers. Unlisted extensions use
// the generic text loader.
var loaders = map[string]loaderFunc{
	".pdf":      loadPDF,
	".docx":     loadDOCX,
	".md":       loadMarkdown,
	".markdown": loadMarkdown,
}

// Load parses the file at path into a Document. An empty file yields a
// Document with empty text, not an error.
func Load(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	load, ok := loaders[ext]
	if !ok {
		load = loadText
	}

	text, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, filepath.Base(path), err)
	}

	return &Document{
		Name: filepath.Base(path),
		Text: text,
	}, nil
}

// loadText reads the file as UTF-8 text. Used for .txt, .html and any
// unlisted extension.
func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
