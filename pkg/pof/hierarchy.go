package pof

import "fmt"

// HierarchyIssue is a problem with the subobject parent forest.
type HierarchyIssue struct {
	ID      int
	Problem string
}

// CheckHierarchy verifies that subobject ids are unique, that every parent
// exists, and that parent links form no cycles. The exporter attaches an
// offending subobject directly under the scene root.
func (m *Model) CheckHierarchy() []HierarchyIssue {
	var issues []HierarchyIssue
	parent := make(map[int]int, len(m.SubObjects))
	for _, so := range m.SubObjects {
		if _, dup := parent[so.ID]; dup {
			issues = append(issues, HierarchyIssue{ID: so.ID, Problem: "duplicate subobject id"})
			continue
		}
		parent[so.ID] = so.Parent
	}

	for _, so := range m.SubObjects {
		if so.Parent == NoParent {
			continue
		}
		if _, ok := parent[so.Parent]; !ok {
			issues = append(issues, HierarchyIssue{
				ID:      so.ID,
				Problem: fmt.Sprintf("parent %d does not exist", so.Parent),
			})
		}
	}

	for _, so := range m.SubObjects {
		if m.inCycle(so.ID, parent) {
			issues = append(issues, HierarchyIssue{ID: so.ID, Problem: "parent chain forms a cycle"})
		}
	}
	return issues
}

// inCycle reports whether following parent links from id returns to id.
func (m *Model) inCycle(id int, parent map[int]int) bool {
	cur, ok := parent[id]
	for steps := 0; ok && cur != NoParent && steps <= len(parent); steps++ {
		if cur == id {
			return true
		}
		cur, ok = parent[cur]
	}
	return false
}

// DetachedIDs returns the ids of subobjects that should hang off the scene
// root because their parent is missing or part of a cycle.
func (m *Model) DetachedIDs() map[int]bool {
	out := make(map[int]bool)
	for _, is := range m.CheckHierarchy() {
		out[is.ID] = true
	}
	return out
}
