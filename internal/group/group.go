// Package group organizes ledgers into a tree of budget groups.
package group

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const pathSeparator = " / "

type Group struct {
	ID        uuid.UUID
	ParentID  *uuid.UUID
	Name      string
	Notes     string
	CreatedAt time.Time
}

// Tree is an in-memory view of every group, indexed for path queries.
type Tree struct {
	byID     map[uuid.UUID]*Group
	children map[uuid.UUID][]*Group
	roots    []*Group
}

func NewTree(groups []*Group) *Tree {
	t := &Tree{
		byID:     make(map[uuid.UUID]*Group, len(groups)),
		children: make(map[uuid.UUID][]*Group),
	}

	for _, g := range groups {
		t.byID[g.ID] = g
	}

	for _, g := range groups {
		if g.ParentID == nil || t.byID[*g.ParentID] == nil {
			t.roots = append(t.roots, g)
			continue
		}

		t.children[*g.ParentID] = append(t.children[*g.ParentID], g)
	}

	byName := func(a, b *Group) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}

		return strings.Compare(a.ID.String(), b.ID.String())
	}

	slices.SortFunc(t.roots, byName)

	for _, cs := range t.children {
		slices.SortFunc(cs, byName)
	}

	return t
}

func (t *Tree) Get(id uuid.UUID) (*Group, bool) {
	g, ok := t.byID[id]
	return g, ok
}

func (t *Tree) Roots() []*Group {
	return t.roots
}

func (t *Tree) Children(id uuid.UUID) []*Group {
	return t.children[id]
}

// Ancestors returns the parents of id, nearest first.
func (t *Tree) Ancestors(id uuid.UUID) []*Group {
	var out []*Group

	seen := map[uuid.UUID]bool{id: true}

	g := t.byID[id]
	for g != nil && g.ParentID != nil && !seen[*g.ParentID] {
		seen[*g.ParentID] = true

		g = t.byID[*g.ParentID]
		if g != nil {
			out = append(out, g)
		}
	}

	return out
}

// Descendants returns every group below id, depth first.
func (t *Tree) Descendants(id uuid.UUID) []*Group {
	var out []*Group

	var walk func(uuid.UUID)
	walk = func(parent uuid.UUID) {
		for _, c := range t.children[parent] {
			out = append(out, c)
			walk(c.ID)
		}
	}

	walk(id)

	return out
}

// Path is the full name of the group, e.g. "Home / Utilities / Power".
func (t *Tree) Path(id uuid.UUID) string {
	g, ok := t.byID[id]
	if !ok {
		return ""
	}

	ancestors := t.Ancestors(id)
	names := make([]string, 0, len(ancestors)+1)

	for i := len(ancestors) - 1; i >= 0; i-- {
		names = append(names, ancestors[i].Name)
	}

	return strings.Join(append(names, g.Name), pathSeparator)
}

// IsDescendant reports whether id sits somewhere below ancestor.
func (t *Tree) IsDescendant(id, ancestor uuid.UUID) bool {
	for _, a := range t.Ancestors(id) {
		if a.ID == ancestor {
			return true
		}
	}

	return false
}
