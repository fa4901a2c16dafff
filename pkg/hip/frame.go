package hip

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

var (
	ErrShortOutput         = errors.New("HIP tool output shorter than its framing prefix")
	ErrMissingDocument     = errors.New("HIP report document not found in tool output")
	ErrUnsupportedEncoding = errors.New("unsupported XML encoding")
)

// SplitDocuments cuts a stream of back-to-back XML documents into one slice
// per document. Whitespace between documents is dropped.
func SplitDocuments(data []byte) ([][]byte, error) {
	var docs [][]byte
	rest := bytes.TrimLeftFunc(data, unicode.IsSpace)
	for len(rest) > 0 {
		end, err := documentEnd(rest)
		if err != nil {
			return docs, fmt.Errorf("document %d: %w", len(docs), err)
		}
		docs = append(docs, rest[:end])
		rest = bytes.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return docs, nil
}

// documentEnd returns the offset just past the closing tag of the first
// root element in data.
func documentEnd(data []byte) (int64, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, ErrMissingDocument
		}
		if err != nil {
			return 0, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return dec.InputOffset(), nil
			}
		}
	}
}

// charsetReader accepts any label naming UTF-8 or ASCII. Transcoding other
// encodings would shift the byte offsets SplitDocuments relies on.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if _, name := charset.Lookup(label); name == "utf-8" {
		return input, nil
	}
	if strings.EqualFold(label, "us-ascii") || strings.EqualFold(label, "ascii") {
		return input, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, label)
}

// ExtractReport drops the framing prefix from raw tool output and parses the
// document at index. A negative index selects the last complete document, so
// the report is found whether PanGpHip prints it alone or after its request
// document.
func ExtractReport(raw []byte, prefix, index int) (*etree.Document, error) {
	if len(raw) < prefix {
		return nil, fmt.Errorf("%w: %d bytes, prefix %d", ErrShortOutput, len(raw), prefix)
	}
	docs, err := SplitDocuments(raw[prefix:])
	if index < 0 {
		if len(docs) == 0 {
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: tool printed no documents", ErrMissingDocument)
		}
		return ParseDocument(docs[len(docs)-1])
	}
	if err != nil && len(docs) <= index {
		return nil, err
	}
	if index >= len(docs) {
		return nil, fmt.Errorf("%w: want document %d, tool printed %d", ErrMissingDocument, index, len(docs))
	}
	return ParseDocument(docs[index])
}

func ParseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse HIP report: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrMissingDocument
	}
	return doc, nil
}
