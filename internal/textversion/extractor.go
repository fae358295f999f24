// Package textversion renders bill text version XML as plain text.
package textversion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrNoDocumentElement is returned for input without a root element
var ErrNoDocumentElement = errors.New("no document element")

// blockElements end the current line when they open and when they close
var blockElements = map[string]bool{
	// bill DTD
	"form": true, "official-title": true, "legis-body": true, "resolution-body": true,
	"engrossed-amendment-body": true, "amendment-body": true, "preamble": true,
	"whereas": true, "resolved": true, "division": true, "title": true, "subtitle": true,
	"chapter": true, "subchapter": true, "part": true, "subpart": true, "section": true,
	"subsection": true, "paragraph": true, "subparagraph": true, "clause": true,
	"subclause": true, "item": true, "subitem": true, "text": true, "quoted-block": true,
	"continuation-text": true, "toc": true, "toc-entry": true, "attestation": true,
	"amendment-instruction": true, "amendment": true,
	// USLM
	"preface": true, "longTitle": true, "officialTitle": true, "docTitle": true,
	"enactingFormula": true, "main": true, "level": true, "content": true,
	"chapeau": true, "continuation": true, "p": true, "quotedContent": true,
	// tables
	"row": true, "tr": true,
}

// labelElements are followed by a space so "1." and "Short title" stay apart
var labelElements = map[string]bool{
	"enum": true, "header": true, "num": true, "heading": true, "entry": true, "td": true,
}

// Extractor renders text version documents as plain text
type Extractor struct {
	registry *Registry
}

// NewExtractor creates a new extractor with the built-in adapters
func NewExtractor() *Extractor {
	return &Extractor{
		registry: NewRegistry(),
	}
}

// Clean repairs a raw document before parsing: surrounding whitespace is
// trimmed and bare " & " is escaped.
func Clean(doc string) string {
	doc = strings.TrimSpace(doc)
	return strings.ReplaceAll(doc, " & ", " &amp; ")
}

// Extract parses doc and returns its plain text, one block per line
func (e *Extractor) Extract(doc string) (string, error) {
	root, err := parseRoot(doc)
	if err != nil {
		return "", err
	}

	adapter := e.registry.FindAdapter(root)

	r := &renderer{}
	for _, section := range adapter.Sections(root) {
		r.walk(section)
		r.flush()
	}

	return strings.Join(r.lines, "\n"), nil
}

// format returns the name of the adapter that would render doc
func (e *Extractor) format(doc string) (string, error) {
	root, err := parseRoot(doc)
	if err != nil {
		return "", err
	}
	return e.registry.FindAdapter(root).Name(), nil
}

func parseRoot(doc string) (*xmlquery.Node, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, ErrNoDocumentElement
	}
	parsed, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse text version: %w", err)
	}
	root := documentElement(parsed)
	if root == nil {
		return nil, ErrNoDocumentElement
	}
	return root, nil
}

type renderer struct {
	lines []string
	line  strings.Builder
}

func (r *renderer) walk(n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		r.line.WriteString(n.Data)
		return
	case xmlquery.ElementNode:
	default:
		return
	}

	block := blockElements[n.Data]
	if block {
		r.flush()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}

	if labelElements[n.Data] {
		r.line.WriteString(" ")
	}
	if block {
		r.flush()
	}
}

// flush ends the current line, collapsing whitespace and dropping it if empty
func (r *renderer) flush() {
	line := strings.Join(strings.Fields(r.line.String()), " ")
	r.line.Reset()
	if line != "" {
		r.lines = append(r.lines, line)
	}
}
