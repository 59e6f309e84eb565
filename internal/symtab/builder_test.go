package symtab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mvp-joe/class-shadow/internal/artifact"
)

// Test Plan for Builder:
// - Nested artifact is attached under its enclosing node, parent link points back
// - Forward references (child read before parent) resolve
// - Dangling reference demotes the node to top level, flags it, records one diagnostic and logs a warning
// - Two-class cycle fails with CycleError naming both classes and yields no namespace
// - Self-enclosing class is a cycle
// - Duplicate binary names keep the same artifact regardless of input order
// - Anonymous classes are elided by default and their named descendants re-parented
// - WithAnonymous keeps anonymous classes under their binary simple name
// - Synthetic fields and classes are dropped unless WithSynthetic(true)
// - Field names are deduplicated per node but shadowing across nesting levels is kept
// - Descriptor artifacts (package-info) never become nodes
// - Same-named local classes take their binary simple name; a member keeps its name
// - Classes lifted out of elided anonymous classes never clash under their new parent

func fields(names ...string) []artifact.Field {
	out := make([]artifact.Field, 0, len(names))
	for _, n := range names {
		out = append(out, artifact.Field{Name: n})
	}
	return out
}

func top(name string, f ...string) *artifact.Artifact {
	return &artifact.Artifact{
		Name:       name,
		Package:    artifact.PackageOf(name),
		SimpleName: artifact.BinarySimpleName(name),
		Kind:       artifact.KindTopLevel,
		Fields:     fields(f...),
		Origin:     name + ".class",
	}
}

func member(outer, simple string, f ...string) *artifact.Artifact {
	name := outer + "$" + simple
	return &artifact.Artifact{
		Name:       name,
		Package:    artifact.PackageOf(outer),
		SimpleName: simple,
		Enclosing:  outer,
		Kind:       artifact.KindMember,
		Fields:     fields(f...),
		Origin:     name + ".class",
	}
}

func build(t *testing.T, b *Builder, artifacts ...*artifact.Artifact) (*Namespace, []Diagnostic) {
	t.Helper()
	ns, diags, err := b.Build(artifacts)
	require.NoError(t, err)
	require.NotNil(t, ns)
	return ns, diags
}

func TestBuilder_AttachesNested(t *testing.T) {
	t.Parallel()

	ns, diags := build(t, NewBuilder(zapOption(t)),
		top("a.Outer", "x"),
		member("a.Outer", "Inner", "y"),
	)
	assert.Empty(t, diags)

	pkg, ok := ns.Package("a")
	require.True(t, ok)
	require.Len(t, pkg.Classes, 1)

	outer := pkg.Classes[0]
	assert.Equal(t, "Outer", outer.Name())
	assert.Nil(t, outer.Parent())
	assert.Equal(t, []string{"x"}, outer.Fields())

	children := outer.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "Inner", children[0].Name())
	assert.Equal(t, "a.Outer$Inner", children[0].QualifiedName())
	assert.Same(t, outer, children[0].Parent())
	assert.Equal(t, []string{"y"}, children[0].Fields())
	assert.Equal(t, 2, ns.Len())
}

func TestBuilder_ForwardReference(t *testing.T) {
	t.Parallel()

	// Deepest class first: every enclosing reference points forward
	ns, diags := build(t, NewBuilder(),
		member("a.Outer$Mid", "Leaf"),
		member("a.Outer", "Mid"),
		top("a.Outer"),
	)
	assert.Empty(t, diags)

	leaf, ok := ns.Lookup("a.Outer$Mid$Leaf")
	require.True(t, ok)
	require.NotNil(t, leaf.Parent())
	assert.Equal(t, "a.Outer$Mid", leaf.Parent().QualifiedName())
	assert.Equal(t, "a.Outer", leaf.Parent().Parent().QualifiedName())
}

func TestBuilder_DanglingReference(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	ns, diags := build(t, NewBuilder(WithLogger(zap.New(core))),
		member("a.Gone", "Orphan", "z"),
		top("a.Present"),
	)

	require.Len(t, diags, 1)
	assert.Equal(t, DiagDanglingReference, diags[0].Kind)
	assert.Equal(t, "a.Gone$Orphan", diags[0].Name)
	assert.Contains(t, diags[0].Message, "a.Gone")

	orphan, ok := ns.Lookup("a.Gone$Orphan")
	require.True(t, ok)
	assert.True(t, orphan.Dangling())
	assert.Nil(t, orphan.Parent())
	assert.Equal(t, "Gone$Orphan", orphan.Name())
	assert.Equal(t, []string{"z"}, orphan.Fields())

	pkg, _ := ns.Package("a")
	assert.Len(t, pkg.Classes, 2)

	assert.Equal(t, 1, logs.FilterMessage("dangling enclosing reference").Len())
}

func TestBuilder_CyclicNesting(t *testing.T) {
	t.Parallel()

	a := &artifact.Artifact{Name: "p.A", Package: "p", SimpleName: "A", Enclosing: "p.B", Kind: artifact.KindMember}
	b := &artifact.Artifact{Name: "p.B", Package: "p", SimpleName: "B", Enclosing: "p.A", Kind: artifact.KindMember}

	ns, _, err := NewBuilder().Build([]*artifact.Artifact{a, b, top("p.Fine")})
	require.Error(t, err)
	assert.Nil(t, ns)
	assert.ErrorIs(t, err, ErrCyclicNesting)

	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, [][]string{{"p.A", "p.B"}}, cerr.Cycles)
	assert.Contains(t, err.Error(), "p.A, p.B")
}

func TestBuilder_SelfEnclosing(t *testing.T) {
	t.Parallel()

	self := &artifact.Artifact{Name: "p.Loop", Package: "p", SimpleName: "Loop", Enclosing: "p.Loop", Kind: artifact.KindMember}

	_, _, err := NewBuilder().Build([]*artifact.Artifact{self})
	assert.ErrorIs(t, err, ErrCyclicNesting)
}

func TestBuilder_DuplicatesIndependentOfOrder(t *testing.T) {
	t.Parallel()

	first := top("a.Dup", "fromA")
	first.Origin = "a.jar!a/Dup.class"
	second := top("a.Dup", "fromB")
	second.Origin = "b.jar!a/Dup.class"

	for _, input := range [][]*artifact.Artifact{{first, second}, {second, first}} {
		ns, diags := build(t, NewBuilder(), input...)

		node, ok := ns.Lookup("a.Dup")
		require.True(t, ok)
		assert.Equal(t, []string{"fromA"}, node.Fields())

		require.Len(t, diags, 1)
		assert.Equal(t, DiagDuplicateArtifact, diags[0].Kind)
		assert.Equal(t, "b.jar!a/Dup.class", diags[0].Origin)
	}
}

func TestBuilder_ElidesAnonymous(t *testing.T) {
	t.Parallel()

	anon := &artifact.Artifact{Name: "a.Outer$1", Package: "a", Enclosing: "a.Outer", Kind: artifact.KindAnonymous, Fields: fields("val$x")}
	deep := member("a.Outer$1", "Deep", "d")

	ns, diags := build(t, NewBuilder(), top("a.Outer"), anon, deep)

	_, ok := ns.Lookup("a.Outer$1")
	assert.False(t, ok)

	node, ok := ns.Lookup("a.Outer$1$Deep")
	require.True(t, ok)
	require.NotNil(t, node.Parent())
	assert.Equal(t, "a.Outer", node.Parent().QualifiedName())

	require.Len(t, diags, 1)
	assert.Equal(t, DiagElided, diags[0].Kind)
	assert.Equal(t, "a.Outer$1", diags[0].Name)
}

func TestBuilder_IncludeAnonymous(t *testing.T) {
	t.Parallel()

	anon := &artifact.Artifact{Name: "a.Outer$1", Package: "a", Enclosing: "a.Outer", Kind: artifact.KindAnonymous}

	ns, diags := build(t, NewBuilder(WithAnonymous(true)), top("a.Outer"), anon)
	assert.Empty(t, diags)

	node, ok := ns.Lookup("a.Outer$1")
	require.True(t, ok)
	assert.Equal(t, "Outer$1", node.Name())
	assert.Equal(t, "a.Outer", node.Parent().QualifiedName())
}

func TestBuilder_Synthetic(t *testing.T) {
	t.Parallel()

	enum := top("a.Color", "RED")
	enum.Fields = append(enum.Fields, artifact.Field{Name: "$VALUES", Synthetic: true})
	switchMap := &artifact.Artifact{
		Name: "a.Color$1", Package: "a", Enclosing: "a.Color",
		Kind: artifact.KindAnonymous, Flags: artifact.AccSynthetic,
	}

	t.Run("dropped by default", func(t *testing.T) {
		t.Parallel()

		ns, diags := build(t, NewBuilder(WithAnonymous(true)), enum, switchMap)
		node, _ := ns.Lookup("a.Color")
		assert.Equal(t, []string{"RED"}, node.Fields())

		_, ok := ns.Lookup("a.Color$1")
		assert.False(t, ok)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message, "synthetic")
	})

	t.Run("kept on request", func(t *testing.T) {
		t.Parallel()

		ns, _ := build(t, NewBuilder(WithSynthetic(true), WithAnonymous(true)), enum, switchMap)
		node, _ := ns.Lookup("a.Color")
		assert.Equal(t, []string{"RED", "$VALUES"}, node.Fields())

		_, ok := ns.Lookup("a.Color$1")
		assert.True(t, ok)
	})
}

func TestBuilder_FieldShadowing(t *testing.T) {
	t.Parallel()

	outer := top("a.Lock", "sync", "serialVersionUID", "sync")
	inner := member("a.Lock", "Sync", "serialVersionUID")

	ns, _ := build(t, NewBuilder(), outer, inner)

	lock, _ := ns.Lookup("a.Lock")
	assert.Equal(t, []string{"sync", "serialVersionUID"}, lock.Fields())

	syncNode, _ := ns.Lookup("a.Lock$Sync")
	assert.Equal(t, []string{"serialVersionUID"}, syncNode.Fields())
}

func TestBuilder_DropsDescriptors(t *testing.T) {
	t.Parallel()

	ns, diags := build(t, NewBuilder(), top("a.package-info"), top("a.Real"))
	assert.Empty(t, diags)
	assert.Equal(t, 1, ns.Len())
}

func zapOption(t *testing.T) BuilderOption {
	return WithLogger(zaptest.NewLogger(t))
}

func local(outer, indexed, simple string, f ...string) *artifact.Artifact {
	name := outer + "$" + indexed
	return &artifact.Artifact{
		Name:       name,
		Package:    artifact.PackageOf(outer),
		SimpleName: simple,
		Enclosing:  outer,
		Kind:       artifact.KindLocal,
		Fields:     fields(f...),
		Origin:     name + ".class",
	}
}

func childNames(node *SymbolNode) map[string]string {
	out := make(map[string]string)
	for _, c := range node.Children() {
		out[c.QualifiedName()] = c.Name()
	}
	return out
}

func TestBuilder_RenamesClashingLocals(t *testing.T) {
	t.Parallel()

	ns, diags := build(t, NewBuilder(),
		top("a.Outer"),
		local("a.Outer", "1Local", "Local", "x"),
		local("a.Outer", "2Local", "Local", "y"),
		member("a.Outer", "Local", "z"),
		local("a.Outer", "1Helper", "Helper"),
	)

	outer, ok := ns.Lookup("a.Outer")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"a.Outer$1Local":  "Outer$1Local",
		"a.Outer$2Local":  "Outer$2Local",
		"a.Outer$Local":   "Local",
		"a.Outer$1Helper": "Helper",
	}, childNames(outer))

	require.Len(t, diags, 2)
	for i, name := range []string{"a.Outer$1Local", "a.Outer$2Local"} {
		assert.Equal(t, DiagRenamed, diags[i].Kind)
		assert.Equal(t, name, diags[i].Name)
	}
}

func TestBuilder_RenamesLiftedClasses(t *testing.T) {
	t.Parallel()

	anon1 := &artifact.Artifact{Name: "a.Outer$1", Package: "a", Enclosing: "a.Outer", Kind: artifact.KindAnonymous}
	anon2 := &artifact.Artifact{Name: "a.Outer$2", Package: "a", Enclosing: "a.Outer", Kind: artifact.KindAnonymous}

	ns, diags := build(t, NewBuilder(),
		top("a.Outer"),
		anon1, anon2,
		member("a.Outer$1", "Deep", "d"),
		member("a.Outer$2", "Deep", "e"),
		member("a.Outer", "Deep", "f"),
	)

	outer, ok := ns.Lookup("a.Outer")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"a.Outer$1$Deep": "Outer$1$Deep",
		"a.Outer$2$Deep": "Outer$2$Deep",
		"a.Outer$Deep":   "Deep",
	}, childNames(outer))

	var renamed []string
	for _, d := range diags {
		if d.Kind == DiagRenamed {
			renamed = append(renamed, d.Name)
		}
	}
	assert.Equal(t, []string{"a.Outer$1$Deep", "a.Outer$2$Deep"}, renamed)
}
