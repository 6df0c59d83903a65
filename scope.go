package xlscope

import "strconv"

// ScopeKind is the declared shape of a scope.
type ScopeKind int

const (
	// RangeScope binds a region; its children are the scopes inside it.
	RangeScope ScopeKind = iota
	// CellScope binds a single anchor cell.
	CellScope
)

// String returns "range" or "cell".
func (k ScopeKind) String() string {
	if k == CellScope {
		return "cell"
	}
	return "range"
}

// rootID is the arena index of the root sentinel.
const rootID = 0

// noParent marks a node that is not attached anywhere.
const noParent = -1

// Scope is a tree node binding a worksheet region to a template. Parent and
// children are arena indices into the owning scopeTree.
type Scope struct {
	id       int
	parent   int
	children []int

	Sheet    string
	Range    RangeAddress
	ref      string
	Template string
	Kind     ScopeKind

	detached bool
}

// ID returns the scope's arena index.
func (s *Scope) ID() int { return s.id }

// Ref returns the textual range, e.g. "A5:D6", or "B5" for a single cell.
func (s *Scope) Ref() string {
	if s.Range.First == s.Range.Last {
		return s.Range.First.Ref()
	}
	return s.ref
}

// Anchor returns the top-left cell of the range.
func (s *Scope) Anchor() CellAddress { return s.Range.First }

// isRoot reports whether s is the root sentinel.
func (s *Scope) isRoot() bool { return s.id == rootID }

// scopeTree owns every scope ever created. The node table doubles as the
// workbook-wide flat scope list; detached nodes are excluded from it.
type scopeTree struct {
	nodes []*Scope
}

func newScopeTree() *scopeTree {
	root := &Scope{id: rootID, parent: noParent, Kind: RangeScope}
	return &scopeTree{nodes: []*Scope{root}}
}

// root returns the sentinel.
func (t *scopeTree) root() *Scope { return t.nodes[rootID] }

// get returns the node with the given id.
func (t *scopeTree) get(id int) *Scope { return t.nodes[id] }

// add registers an unattached scope and returns its id.
func (t *scopeTree) add(sheet string, rng RangeAddress, template string, kind ScopeKind) int {
	s := &Scope{
		id:       len(t.nodes),
		parent:   noParent,
		Sheet:    sheet,
		Range:    rng,
		ref:      rng.Ref(),
		Template: template,
		Kind:     kind,
	}
	t.nodes = append(t.nodes, s)
	return s.id
}

// scopes returns the live flat list: every attached, non-root scope.
func (t *scopeTree) scopes() []*Scope {
	out := make([]*Scope, 0, len(t.nodes)-1)
	for _, s := range t.nodes[1:] {
		if !s.detached {
			out = append(out, s)
		}
	}
	return out
}

// addChild appends child to parent's children, transferring ownership from any
// previous parent.
func (t *scopeTree) addChild(parent, child int) {
	c := t.nodes[child]
	if c.parent != noParent && c.parent != parent {
		t.removeChild(c.parent, child)
	}
	c.parent = parent
	p := t.nodes[parent]
	p.children = append(p.children, child)
}

func (t *scopeTree) removeChild(parent, child int) {
	p := t.nodes[parent]
	for i, id := range p.children {
		if id == child {
			p.children = append(p.children[:i:i], p.children[i+1:]...)
			return
		}
	}
}

// contains reports whether b lies on a's sheet and within a's range. The root
// contains everything.
func (t *scopeTree) contains(a, b int) bool {
	sa, sb := t.nodes[a], t.nodes[b]
	if sa.isRoot() {
		return true
	}
	return sa.Sheet == sb.Sheet && sa.Range.ContainsRange(sb.Range)
}

// place inserts id below parent: it descends into the first child containing it,
// otherwise it adopts the children it contains and joins parent's children.
func (t *scopeTree) place(parent, id int) {
	p := t.nodes[parent]
	for _, child := range p.children {
		if t.contains(child, id) {
			t.place(child, id)
			return
		}
	}
	var kept []int
	for _, child := range p.children {
		if t.contains(id, child) {
			t.nodes[child].parent = noParent
			t.addChild(id, child)
			continue
		}
		kept = append(kept, child)
	}
	p.children = kept
	t.addChild(parent, id)
}

// build places every unattached scope into the tree.
func (t *scopeTree) build(ids []int) {
	for _, id := range ids {
		t.place(rootID, id)
	}
}

// grow extends the far corner of id by delta and propagates the same growth to
// every ancestor below the root.
func (t *scopeTree) grow(id int, delta CellAddress) {
	for id != noParent && id != rootID {
		s := t.nodes[id]
		s.Range.Last = s.Range.Last.Add(delta)
		s.ref = s.Range.Ref()
		id = s.parent
	}
}

// move translates id and all of its descendants by delta.
func (t *scopeTree) move(id int, delta CellAddress) {
	s := t.nodes[id]
	s.Range = s.Range.Move(delta)
	s.ref = s.Range.Ref()
	for _, child := range s.children {
		t.move(child, delta)
	}
}

// clone deep-copies the subtree at id. The copy is unattached.
func (t *scopeTree) clone(id int) int {
	s := t.nodes[id]
	c := t.add(s.Sheet, s.Range, s.Template, s.Kind)
	for _, child := range s.children {
		t.addChild(c, t.clone(child))
	}
	return c
}

// cloneAsScalar deep-copies the subtree at id with a template that selects the
// index-th element of the bound array.
func (t *scopeTree) cloneAsScalar(id, index int) int {
	c := t.clone(id)
	t.nodes[c].Template = markerScalar + contextVar + "[" + strconv.Itoa(index) + "]" + markerEnd
	return c
}

// makeScalar downgrades a repeating marker so the scope no longer re-triggers
// array expansion.
func (t *scopeTree) makeScalar(id int) {
	s := t.nodes[id]
	s.Template = scalarTemplate(s.Template)
}

// replaceChildren detaches id's current subtree and installs children instead.
func (t *scopeTree) replaceChildren(id int, children []int) {
	s := t.nodes[id]
	for _, old := range s.children {
		t.detach(old)
	}
	s.children = nil
	for _, c := range children {
		t.nodes[c].parent = noParent
		t.addChild(id, c)
	}
}

// detach removes the subtree at id from the flat list.
func (t *scopeTree) detach(id int) {
	s := t.nodes[id]
	s.detached = true
	for _, child := range s.children {
		t.detach(child)
	}
}

// hasAncestorIn reports whether any proper ancestor of id is in set.
func (t *scopeTree) hasAncestorIn(id int, set map[int]bool) bool {
	for p := t.nodes[id].parent; p != noParent && p != rootID; p = t.nodes[p].parent {
		if set[p] {
			return true
		}
	}
	return false
}

// depth returns the number of ancestors below the root.
func (t *scopeTree) depth(id int) int {
	d := 0
	for p := t.nodes[id].parent; p != noParent && p != rootID; p = t.nodes[p].parent {
		d++
	}
	return d
}
