package library

import (
	"fmt"
	"strings"
)

// Section is a node in the library's shelf layout.
type Section struct {
	Name     string    `json:"name"`
	Children []Section `json:"children,omitempty"`
}

// DefaultSections is the layout a new library starts with.
func DefaultSections() Section {
	return Section{
		Name: "Library",
		Children: []Section{
			{Name: "Computer Science Section", Children: []Section{
				{Name: "Outpatient Services"},
				{Name: "Reference Section"},
			}},
			{Name: "Literature Section", Children: []Section{
				{Name: "Inpatient Services"},
				{Name: "Archives"},
			}},
		},
	}
}

// AddChild adds a section named name under the first section, breadth
// first, named parent. The parent "library" always matches the root.
func (s *Section) AddChild(parent, name string) error {
	name = clip(name, MaxTitleLength)
	if name == "" {
		return fmt.Errorf("section name is empty: %w", ErrInvalidState)
	}
	if strings.EqualFold(parent, "library") {
		s.Children = append(s.Children, Section{Name: name})
		return nil
	}
	queue := []*Section{s}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Name == parent {
			cur.Children = append(cur.Children, Section{Name: name})
			return nil
		}
		for i := range cur.Children {
			queue = append(queue, &cur.Children[i])
		}
	}
	return fmt.Errorf("section %q: %w", parent, ErrNotFound)
}

// Walk visits every section depth first, parents before children.
func (s Section) Walk(fn func(depth int, name string)) {
	s.walk(0, fn)
}

func (s Section) walk(depth int, fn func(int, string)) {
	fn(depth, s.Name)
	for _, c := range s.Children {
		c.walk(depth+1, fn)
	}
}

func (s Section) clone() Section {
	c := Section{Name: s.Name}
	if len(s.Children) > 0 {
		c.Children = make([]Section, len(s.Children))
		for i, ch := range s.Children {
			c.Children[i] = ch.clone()
		}
	}
	return c
}
