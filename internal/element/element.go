package element

import (
	"sort"
	"time"
)

// Element represents one controllable or observable unit on the panel.
//
// Identity is the panel-assigned id, stable for the panel's lifetime.
// An element is immutable once discovered; only CustomName may change,
// set by an operator to override the panel's own naming.
type Element struct {
	// ID is the panel-assigned element identifier.
	ID string `json:"id"`

	// Name is the element name as reported by the panel.
	Name string `json:"name"`

	// CustomName overrides Name for display when non-empty.
	CustomName string `json:"custom_name,omitempty"`

	// Class is the panel class string (see Class constants).
	Class Class `json:"class"`

	// SceneID identifies the scene the element was discovered in.
	SceneID string `json:"scene_id"`

	// SceneName is the human-readable name of that scene.
	SceneName string `json:"scene_name"`

	// FirstSeen is when discovery first recorded this element.
	FirstSeen time.Time `json:"first_seen,omitempty"`

	// LastSeen is when discovery last confirmed this element.
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// DisplayName returns the custom name if set, otherwise the panel name.
func (e *Element) DisplayName() string {
	if e.CustomName != "" {
		return e.CustomName
	}
	return e.Name
}

// Catalog is the flat id -> Element map built by discovery.
//
// A catalog is built wholesale at startup (and on reconfiguration) and
// never mutated per poll cycle. Element ids are unique within a catalog;
// when two scenes report the same id, the later scene's entry wins.
type Catalog map[string]Element

// IDs returns all element ids in the catalog, sorted.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all elements sorted by scene name, then element name,
// then id. Suitable for stable presentation.
func (c Catalog) List() []Element {
	elements := make([]Element, 0, len(c))
	for _, e := range c {
		elements = append(elements, e)
	}
	sort.Slice(elements, func(i, j int) bool {
		if elements[i].SceneName != elements[j].SceneName {
			return elements[i].SceneName < elements[j].SceneName
		}
		if elements[i].Name != elements[j].Name {
			return elements[i].Name < elements[j].Name
		}
		return elements[i].ID < elements[j].ID
	})
	return elements
}

// ByClass returns all elements of the given class, sorted by id.
func (c Catalog) ByClass(class Class) []Element {
	var elements []Element
	for _, e := range c {
		if e.Class == class {
			elements = append(elements, e)
		}
	}
	sort.Slice(elements, func(i, j int) bool {
		return elements[i].ID < elements[j].ID
	})
	return elements
}

// Has reports whether the catalog contains the given element id.
func (c Catalog) Has(id string) bool {
	_, ok := c[id]
	return ok
}
