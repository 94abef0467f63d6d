// Package ioconv reads and writes documents as JSON Lines, one
// document with its annotations per line. It is the interchange format
// of the CLI and the import path into the store.
package ioconv

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/document"
)

// maxLineBytes bounds a single serialized document. Clinical documents
// are short; the limit guards against concatenated files.
const maxLineBytes = 16 * 1024 * 1024

// ReadDocuments parses JSONL documents from r. Blank lines are
// skipped; any malformed line fails the whole read with its line
// number.
func ReadDocuments(r io.Reader) ([]*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var docs []*document.Document
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		doc, err := document.Decode([]byte(text))
		if err != nil {
			return nil, eris.Wrapf(err, "ioconv: line %d", line)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "ioconv: read")
	}
	return docs, nil
}

// ReadFile reads JSONL documents from a file.
func ReadFile(path string) ([]*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ioconv: open %s", path)
	}
	defer f.Close()
	docs, err := ReadDocuments(f)
	if err != nil {
		return nil, eris.Wrapf(err, "ioconv: %s", path)
	}
	return docs, nil
}

// WriteDocuments writes documents to w as JSONL, one per line, in
// order.
func WriteDocuments(w io.Writer, docs []*document.Document) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return eris.Wrapf(err, "ioconv: encode document %s", doc.UID)
		}
	}
	return eris.Wrap(bw.Flush(), "ioconv: flush")
}

// WriteFile writes documents to a JSONL file, creating or truncating
// it.
func WriteFile(path string, docs []*document.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "ioconv: create %s", path)
	}
	if err := WriteDocuments(f, docs); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "ioconv: close %s", path)
}

// ReadTexts reads a plain-text file into documents, one document per
// non-blank line. Offsets inside each document are line-relative.
func ReadTexts(r io.Reader) ([]*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var docs []*document.Document
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		docs = append(docs, document.New(text))
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "ioconv: read texts")
	}
	return docs, nil
}
