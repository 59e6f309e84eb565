package symtab

// SymbolNode is one class or nested class in the resolved namespace.
// Nodes are owned by the Builder while a pass runs and are read-only once
// Build returns.
type SymbolNode struct {
	name      string
	qualified string
	pkg       string
	parent    *SymbolNode
	children  []*SymbolNode
	fields    []string
	fieldSet  map[string]struct{}
	dangling  bool
}

// Name returns the simple name used in the emitted declaration.
func (n *SymbolNode) Name() string { return n.name }

// QualifiedName returns the binary name, e.g. "java.util.Map$Entry".
func (n *SymbolNode) QualifiedName() string { return n.qualified }

// Package returns the dotted package path.
func (n *SymbolNode) Package() string { return n.pkg }

// Parent returns the enclosing node, nil for top-level entries.
func (n *SymbolNode) Parent() *SymbolNode { return n.parent }

// Dangling reports whether the node was demoted to top level because its
// enclosing class was missing from the input.
func (n *SymbolNode) Dangling() bool { return n.dangling }

// Children returns the nested classes in attachment order.
func (n *SymbolNode) Children() []*SymbolNode {
	out := make([]*SymbolNode, len(n.children))
	copy(out, n.children)
	return out
}

// Fields returns the node's own declared field names in declaration order.
func (n *SymbolNode) Fields() []string {
	out := make([]string, len(n.fields))
	copy(out, n.fields)
	return out
}

func (n *SymbolNode) addField(name string) {
	if _, ok := n.fieldSet[name]; ok {
		return
	}
	n.fieldSet[name] = struct{}{}
	n.fields = append(n.fields, name)
}

func (n *SymbolNode) attach(child *SymbolNode) {
	child.parent = n
	n.children = append(n.children, child)
}

// Package is the set of top-level nodes sharing a package path.
type Package struct {
	Path    string
	Classes []*SymbolNode
}

// Namespace is a library's forest of top-level nodes keyed by package path.
type Namespace struct {
	packages map[string]*Package
	index    map[string]*SymbolNode
}

func newNamespace() *Namespace {
	return &Namespace{
		packages: make(map[string]*Package),
		index:    make(map[string]*SymbolNode),
	}
}

// Packages returns the packages in no particular order; use the order
// package for emission order.
func (ns *Namespace) Packages() []*Package {
	out := make([]*Package, 0, len(ns.packages))
	for _, p := range ns.packages {
		out = append(out, p)
	}
	return out
}

// Package returns the package with the given path.
func (ns *Namespace) Package(path string) (*Package, bool) {
	p, ok := ns.packages[path]
	return p, ok
}

// Lookup finds an emitted node by binary name.
func (ns *Namespace) Lookup(qualified string) (*SymbolNode, bool) {
	n, ok := ns.index[qualified]
	return n, ok
}

// Len returns the number of emitted nodes at any depth.
func (ns *Namespace) Len() int {
	return len(ns.index)
}

func (ns *Namespace) addTopLevel(n *SymbolNode) {
	p, ok := ns.packages[n.pkg]
	if !ok {
		p = &Package{Path: n.pkg}
		ns.packages[n.pkg] = p
	}
	p.Classes = append(p.Classes, n)
}

// DiagnosticKind classifies a recovered problem found while building.
type DiagnosticKind string

const (
	// DiagDanglingReference: enclosing class absent from the input; the node was demoted to top level.
	DiagDanglingReference DiagnosticKind = "dangling_enclosing_reference"
	// DiagDuplicateArtifact: a second artifact with an already-seen binary name was dropped.
	DiagDuplicateArtifact DiagnosticKind = "duplicate_artifact"
	// DiagElided: an anonymous or synthetic class was left out of the shadow.
	DiagElided DiagnosticKind = "elided"
	// DiagRenamed: a local or lifted class shared its name with a sibling and was
	// emitted under its binary simple name.
	DiagRenamed DiagnosticKind = "renamed"
)

// Diagnostic is reported alongside the Namespace, never inside stubs.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Name    string         `json:"name" yaml:"name"`
	Origin  string         `json:"origin,omitempty" yaml:"origin,omitempty"`
	Message string         `json:"message" yaml:"message"`
}
