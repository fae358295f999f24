package textversion

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Adapter selects the parts of a text version document worth rendering
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter understands the document element
	CanHandle(root *xmlquery.Node) bool

	// Sections returns the nodes to render, in output order
	Sections(root *xmlquery.Node) []*xmlquery.Node
}

// Registry manages format adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	// USLM shares root element names with the bill DTD, so it goes first
	registry.Register(NewUSLMAdapter())
	registry.Register(NewDDTAdapter())

	registry.generic = NewGenericAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the first adapter that can handle the document element
func (r *Registry) FindAdapter(root *xmlquery.Node) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(root) {
			return adapter
		}
	}
	return r.generic
}

// DDTAdapter handles bill DTD documents (bill, resolution, amendment-doc)
type DDTAdapter struct {
	roots  map[string]bool
	titles []string
	bodies []string
}

// NewDDTAdapter creates a new bill DTD adapter
func NewDDTAdapter() *DDTAdapter {
	return &DDTAdapter{
		roots: map[string]bool{
			"bill":          true,
			"resolution":    true,
			"amendment-doc": true,
		},
		titles: []string{"official-title"},
		bodies: []string{"legis-body", "resolution-body", "engrossed-amendment-body", "amendment-body"},
	}
}

func (a *DDTAdapter) Name() string {
	return "ddt"
}

func (a *DDTAdapter) CanHandle(root *xmlquery.Node) bool {
	return root != nil && a.roots[root.Data]
}

func (a *DDTAdapter) Sections(root *xmlquery.Node) []*xmlquery.Node {
	return collectSections(root, a.titles, a.bodies)
}

// USLMAdapter handles United States Legislative Markup documents
type USLMAdapter struct {
	titles []string
	bodies []string
}

// NewUSLMAdapter creates a new USLM adapter
func NewUSLMAdapter() *USLMAdapter {
	return &USLMAdapter{
		titles: []string{"officialTitle", "longTitle"},
		bodies: []string{"main"},
	}
}

func (a *USLMAdapter) Name() string {
	return "uslm"
}

func (a *USLMAdapter) CanHandle(root *xmlquery.Node) bool {
	return root != nil && strings.Contains(strings.ToLower(root.NamespaceURI), "uslm")
}

func (a *USLMAdapter) Sections(root *xmlquery.Node) []*xmlquery.Node {
	return collectSections(root, a.titles, a.bodies)
}

// GenericAdapter renders the whole document element
type GenericAdapter struct{}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

func (a *GenericAdapter) Name() string {
	return "generic"
}

func (a *GenericAdapter) CanHandle(root *xmlquery.Node) bool {
	return true
}

func (a *GenericAdapter) Sections(root *xmlquery.Node) []*xmlquery.Node {
	if root == nil {
		return nil
	}
	return []*xmlquery.Node{root}
}

// collectSections returns the first title element found and every body
// element found. With no body the whole document is rendered.
func collectSections(root *xmlquery.Node, titles, bodies []string) []*xmlquery.Node {
	var sections []*xmlquery.Node

	for _, name := range titles {
		if n := findFirst(root, name); n != nil {
			sections = append(sections, n)
			break
		}
	}

	foundBody := false
	for _, name := range bodies {
		for _, n := range findAll(root, name) {
			sections = append(sections, n)
			foundBody = true
		}
	}

	if !foundBody {
		return []*xmlquery.Node{root}
	}
	return sections
}

// documentElement returns the first element child of a parsed document
func documentElement(doc *xmlquery.Node) *xmlquery.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// elementXPath matches name in any namespace, at root or below it.
// USLM documents carry a default namespace.
func elementXPath(name string) string {
	return fmt.Sprintf("descendant-or-self::*[local-name()='%s']", name)
}

func findFirst(root *xmlquery.Node, name string) *xmlquery.Node {
	return xmlquery.FindOne(root, elementXPath(name))
}

// findAll returns matching elements, skipping matches nested in a match
func findAll(root *xmlquery.Node, name string) []*xmlquery.Node {
	expr := fmt.Sprintf("%s[not(ancestor::*[local-name()='%s'])]", elementXPath(name), name)
	return xmlquery.Find(root, expr)
}
