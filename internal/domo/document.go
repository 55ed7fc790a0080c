package domo

import (
	"encoding/xml"
	"fmt"
)

// Node is one element in a parsed panel document.
//
// The panel's XML carries no namespaces and no fixed schema across
// firmware versions, so documents are parsed into a generic tree and
// queried by local tag name.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// Document wraps a parsed panel XML document.
type Document struct {
	root Node
}

// ParseDocument parses raw XML into a Document.
func ParseDocument(data []byte) (*Document, error) {
	var root Node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{root: root}, nil
}

// RootTag returns the local name of the document's root element.
func (d *Document) RootTag() string {
	return d.root.XMLName.Local
}

// Root returns the document's root node.
func (d *Document) Root() *Node {
	return &d.root
}

// FindAll returns all descendants of the root with the given tag name,
// in document order.
func (d *Document) FindAll(name string) []*Node {
	return d.root.FindAll(name)
}

// FindText returns the text of the root's first direct child with the
// given tag name, or "" if absent. Text is returned untrimmed.
func (d *Document) FindText(name string) string {
	return d.root.FindText(name)
}

// Find returns the first direct child with the given tag name, or nil.
func (n *Node) Find(name string) *Node {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i]
		}
	}
	return nil
}

// FindAll returns all descendants with the given tag name in document
// order, parents before their nested matches.
func (n *Node) FindAll(name string) []*Node {
	var found []*Node
	for i := range n.Children {
		child := &n.Children[i]
		if child.XMLName.Local == name {
			found = append(found, child)
		}
		found = append(found, child.FindAll(name)...)
	}
	return found
}

// FindText returns the text of the first direct child with the given
// tag name, or "" if absent.
func (n *Node) FindText(name string) string {
	if child := n.Find(name); child != nil {
		return child.Text
	}
	return ""
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, attr := range n.Attrs {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}
