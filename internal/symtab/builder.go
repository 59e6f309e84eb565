package symtab

import (
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
	"go.uber.org/zap"

	"github.com/mvp-joe/class-shadow/internal/artifact"
)

// Builder folds the artifacts of one library pass into a Namespace.
type Builder struct {
	logger           *zap.Logger
	includeSynthetic bool
	includeAnonymous bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger for recovered problems.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithSynthetic keeps compiler-generated classes and fields.
func WithSynthetic(include bool) BuilderOption {
	return func(b *Builder) {
		b.includeSynthetic = include
	}
}

// WithAnonymous keeps anonymous classes, named by their binary simple name.
func WithAnonymous(include bool) BuilderOption {
	return func(b *Builder) {
		b.includeAnonymous = include
	}
}

// NewBuilder creates a Builder. By default synthetic and anonymous classes
// are elided and synthetic fields dropped.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves the nesting of all artifacts in two passes: one node per
// artifact first, then every node attached to its enclosing node. Enclosing
// references may point forward to any artifact in the set.
//
// Recovered problems are returned as diagnostics. A nesting cycle fails the
// whole pass with a *CycleError and no Namespace.
func (b *Builder) Build(artifacts []*artifact.Artifact) (*Namespace, []Diagnostic, error) {
	var diags []Diagnostic

	// Pass 1: one node per binary name
	table := make(map[string]*artifact.Artifact, len(artifacts))
	nodes := make(map[string]*SymbolNode, len(artifacts))
	ordered := make([]*artifact.Artifact, 0, len(artifacts))
	for _, a := range canonicalOrder(artifacts) {
		if first, dup := table[a.Name]; dup {
			diags = append(diags, Diagnostic{
				Kind:    DiagDuplicateArtifact,
				Name:    a.Name,
				Origin:  a.Origin,
				Message: fmt.Sprintf("already read from %s", first.Origin),
			})
			b.logger.Warn("duplicate artifact dropped",
				zap.String("name", a.Name),
				zap.String("origin", a.Origin),
				zap.String("kept", first.Origin))
			continue
		}
		table[a.Name] = a
		nodes[a.Name] = b.newNode(a)
		ordered = append(ordered, a)
	}

	if err := checkCycles(ordered, table); err != nil {
		return nil, diags, err
	}

	// Pass 2: link every emitted node to its nearest emitted ancestor
	ns := newNamespace()
	for _, a := range ordered {
		if b.elided(a) {
			diags = append(diags, Diagnostic{
				Kind:    DiagElided,
				Name:    a.Name,
				Origin:  a.Origin,
				Message: fmt.Sprintf("%s class not emitted", elisionReason(a)),
			})
			continue
		}

		node := nodes[a.Name]
		ns.index[a.Name] = node

		parent, missing := b.emittedAncestor(a, table)
		switch {
		case missing != "":
			node.dangling = true
			node.name = artifact.BinarySimpleName(a.Name)
			ns.addTopLevel(node)
			diags = append(diags, Diagnostic{
				Kind:    DiagDanglingReference,
				Name:    a.Name,
				Origin:  a.Origin,
				Message: fmt.Sprintf("enclosing class %s not found", missing),
			})
			b.logger.Warn("dangling enclosing reference",
				zap.String("name", a.Name),
				zap.String("enclosing", missing),
				zap.String("origin", a.Origin))
		case parent == "":
			if a.Enclosing != "" {
				// every ancestor was elided
				node.name = artifact.BinarySimpleName(a.Name)
			}
			ns.addTopLevel(node)
		default:
			nodes[parent].attach(node)
		}
	}

	// Siblings must declare distinct names
	for _, a := range ordered {
		if node, ok := ns.index[a.Name]; ok && len(node.children) > 1 {
			diags = append(diags, b.disambiguate(node, table)...)
		}
	}

	b.logger.Debug("namespace built",
		zap.Int("artifacts", len(artifacts)),
		zap.Int("nodes", ns.Len()),
		zap.Int("packages", len(ns.packages)),
		zap.Int("diagnostics", len(diags)))

	return ns, diags, nil
}

func (b *Builder) newNode(a *artifact.Artifact) *SymbolNode {
	n := &SymbolNode{
		name:      a.SimpleName,
		qualified: a.Name,
		pkg:       a.Package,
		fieldSet:  make(map[string]struct{}, len(a.Fields)),
	}
	if n.name == "" {
		n.name = artifact.BinarySimpleName(a.Name)
	}
	for _, f := range a.Fields {
		if f.Synthetic && !b.includeSynthetic {
			continue
		}
		n.addField(f.Name)
	}
	return n
}

// disambiguate renames children of parent whose declared name clashes with a
// sibling, unless they are direct members of parent. Local classes and classes
// lifted out of elided ancestors take their binary simple name instead.
func (b *Builder) disambiguate(parent *SymbolNode, table map[string]*artifact.Artifact) []Diagnostic {
	seen := make(map[string]int, len(parent.children))
	for _, c := range parent.children {
		seen[c.name]++
	}

	var diags []Diagnostic
	for _, c := range parent.children {
		if seen[c.name] < 2 {
			continue
		}
		a := table[c.qualified]
		if a.Kind == artifact.KindMember && a.Enclosing == parent.qualified {
			continue
		}
		declared := c.name
		c.name = artifact.BinarySimpleName(c.qualified)
		diags = append(diags, Diagnostic{
			Kind:    DiagRenamed,
			Name:    c.qualified,
			Origin:  a.Origin,
			Message: fmt.Sprintf("%s clashes with a sibling in %s, emitted as %s", declared, parent.qualified, c.name),
		})
		b.logger.Debug("nested class renamed",
			zap.String("name", c.qualified),
			zap.String("declared", declared),
			zap.String("emitted", c.name))
	}
	return diags
}

func (b *Builder) elided(a *artifact.Artifact) bool {
	if a.Synthetic() && !b.includeSynthetic {
		return true
	}
	return a.Kind == artifact.KindAnonymous && !b.includeAnonymous
}

// emittedAncestor walks the enclosing chain past elided classes. It returns
// the binary name of the nearest emitted ancestor ("" for top level), or the
// name of the first enclosing class missing from the table.
func (b *Builder) emittedAncestor(a *artifact.Artifact, table map[string]*artifact.Artifact) (parent, missing string) {
	for cur := a.Enclosing; cur != ""; {
		enclosing, ok := table[cur]
		if !ok {
			return "", cur
		}
		if !b.elided(enclosing) {
			return cur, ""
		}
		cur = enclosing.Enclosing
	}
	return "", ""
}

func elisionReason(a *artifact.Artifact) string {
	if a.Synthetic() {
		return "synthetic"
	}
	return "anonymous"
}

// canonicalOrder drops descriptors and sorts by binary name, then origin, so
// duplicate resolution never depends on arrival order.
func canonicalOrder(artifacts []*artifact.Artifact) []*artifact.Artifact {
	out := make([]*artifact.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a == nil || a.IsDescriptor() {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Origin < out[j].Origin
	})
	return out
}

// checkCycles builds the enclosing-reference graph and rejects it if any
// strongly connected component holds more than one class, or a class names
// itself as its enclosing class.
func checkCycles(ordered []*artifact.Artifact, table map[string]*artifact.Artifact) error {
	g := graph.New(graph.StringHash, graph.Directed())
	for _, a := range ordered {
		if err := g.AddVertex(a.Name); err != nil {
			return fmt.Errorf("failed to add class %s to nesting graph: %w", a.Name, err)
		}
	}

	var cycles [][]string
	for _, a := range ordered {
		if a.Enclosing == "" {
			continue
		}
		if a.Enclosing == a.Name {
			cycles = append(cycles, []string{a.Name})
			continue
		}
		if _, ok := table[a.Enclosing]; !ok {
			continue // dangling, resolved in pass 2
		}
		if err := g.AddEdge(a.Name, a.Enclosing); err != nil {
			return fmt.Errorf("failed to add nesting edge %s -> %s: %w", a.Name, a.Enclosing, err)
		}
	}

	components, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return fmt.Errorf("failed to analyze nesting graph: %w", err)
	}
	for _, c := range components {
		if len(c) > 1 {
			sort.Strings(c)
			cycles = append(cycles, c)
		}
	}
	if len(cycles) == 0 {
		return nil
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return &CycleError{Cycles: cycles}
}
