package artifact_test

import (
	"errors"
	"testing"

	"github.com/mvp-joe/class-shadow/internal/artifact"
	"github.com/mvp-joe/class-shadow/internal/artifact/artifacttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the class-file reader:
// - Top-level class yields name, package, simple name and fields in file order
// - Member class resolves enclosing class and simple name from InnerClasses
// - Rows describing other classes do not change this class's nesting
// - Local class takes its enclosing class from EnclosingMethod
// - Anonymous class has no simple name
// - Synthetic fields and synthetic classes are flagged, not dropped
// - Enclosing reference may name a class that was never read
// - Class names containing '$' without InnerClasses stay top-level
// - Duplicate field names are kept as declared
// - Bad magic, short input and old major versions fail with ErrBadHeader
// - Truncation anywhere fails with ErrTruncated
// - Trailing bytes fail with ErrMalformed
// - module-info and package-info are reported as descriptors

func TestRead_TopLevel(t *testing.T) {
	t.Parallel()

	data := artifacttest.TopLevel("android.app.admin.DevicePolicyManager", "TAG", "mService", "ACTION_ADD_DEVICE_ADMIN").Bytes()

	a, err := artifact.Read("DevicePolicyManager.class", data)
	require.NoError(t, err)

	assert.Equal(t, "android.app.admin.DevicePolicyManager", a.Name)
	assert.Equal(t, "android.app.admin", a.Package)
	assert.Equal(t, "DevicePolicyManager", a.SimpleName)
	assert.Equal(t, artifact.KindTopLevel, a.Kind)
	assert.Empty(t, a.Enclosing)
	assert.Equal(t, "DevicePolicyManager.class", a.Origin)
	assert.Equal(t, []artifact.Field{{Name: "TAG"}, {Name: "mService"}, {Name: "ACTION_ADD_DEVICE_ADMIN"}}, a.Fields)
}

func TestRead_MemberClass(t *testing.T) {
	t.Parallel()

	c := artifacttest.Member("java.util.concurrent.locks.ReentrantLock", "Sync", "serialVersionUID")
	c.Members = []string{"java.util.concurrent.locks.ReentrantLock$Sync$Node"}

	a, err := artifact.Read("Sync.class", c.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "java.util.concurrent.locks.ReentrantLock$Sync", a.Name)
	assert.Equal(t, "Sync", a.SimpleName)
	assert.Equal(t, "java.util.concurrent.locks.ReentrantLock", a.Enclosing)
	assert.Equal(t, artifact.KindMember, a.Kind)
	assert.Equal(t, []artifact.Field{{Name: "serialVersionUID"}}, a.Fields)
}

func TestRead_OuterListsMembers(t *testing.T) {
	t.Parallel()

	c := artifacttest.TopLevel("a.Outer", "x")
	c.Members = []string{"a.Outer$Inner", "a.Outer$Other"}

	a, err := artifact.Read("Outer.class", c.Bytes())
	require.NoError(t, err)

	assert.Equal(t, artifact.KindTopLevel, a.Kind)
	assert.Empty(t, a.Enclosing)
	assert.Equal(t, "Outer", a.SimpleName)
}

func TestRead_LocalClass(t *testing.T) {
	t.Parallel()

	c := artifacttest.Class{
		Name:           "a.Outer$1Helper",
		SimpleName:     "Helper",
		Nested:         true,
		EnclosingClass: "a.Outer",
		Fields:         []artifacttest.Field{{Name: "count"}},
	}

	a, err := artifact.Read("Outer$1Helper.class", c.Bytes())
	require.NoError(t, err)

	assert.Equal(t, artifact.KindLocal, a.Kind)
	assert.Equal(t, "Helper", a.SimpleName)
	assert.Equal(t, "a.Outer", a.Enclosing)
}

func TestRead_AnonymousClass(t *testing.T) {
	t.Parallel()

	c := artifacttest.Class{
		Name:           "a.Outer$1",
		Nested:         true,
		EnclosingClass: "a.Outer",
		Fields:         []artifacttest.Field{{Name: "this$0", Access: artifact.AccSynthetic}},
	}

	a, err := artifact.Read("Outer$1.class", c.Bytes())
	require.NoError(t, err)

	assert.Equal(t, artifact.KindAnonymous, a.Kind)
	assert.Empty(t, a.SimpleName)
	assert.Equal(t, "a.Outer", a.Enclosing)
	require.Len(t, a.Fields, 1)
	assert.True(t, a.Fields[0].Synthetic)
}

func TestRead_SyntheticClass(t *testing.T) {
	t.Parallel()

	c := artifacttest.Class{
		Name:           "a.Outer$1",
		Nested:         true,
		Access:         artifact.AccSynthetic,
		EnclosingClass: "a.Outer",
		Fields:         []artifacttest.Field{{Name: "$SwitchMap$a$Color", Access: artifact.AccSynthetic}},
	}

	a, err := artifact.Read("Outer$1.class", c.Bytes())
	require.NoError(t, err)
	assert.True(t, a.Synthetic())
}

func TestRead_ForwardReference(t *testing.T) {
	t.Parallel()

	// Enclosing class is resolved later, never here
	a, err := artifact.Read("Inner.class", artifacttest.Member("missing.Parent", "Inner", "y").Bytes())
	require.NoError(t, err)
	assert.Equal(t, "missing.Parent", a.Enclosing)
}

func TestRead_DollarInTopLevelName(t *testing.T) {
	t.Parallel()

	a, err := artifact.Read("Gen.class", artifacttest.TopLevel("gen.Proxy$Impl", "h").Bytes())
	require.NoError(t, err)

	assert.Equal(t, artifact.KindTopLevel, a.Kind)
	assert.Equal(t, "Proxy$Impl", a.SimpleName)
	assert.Empty(t, a.Enclosing)
}

func TestRead_KeepsDuplicateFields(t *testing.T) {
	t.Parallel()

	a, err := artifact.Read("Dup.class", artifacttest.TopLevel("Dup", "x", "x").Bytes())
	require.NoError(t, err)

	assert.Equal(t, "", a.Package)
	assert.Len(t, a.Fields, 2)
}

func TestRead_BadHeader(t *testing.T) {
	t.Parallel()

	valid := artifacttest.TopLevel("a.A", "x").Bytes()

	badMagic := append([]byte{}, valid...)
	badMagic[0] = 0xCA
	badMagic[1] = 0xFE
	badMagic[2] = 0xD0
	badMagic[3] = 0x0D

	old := artifacttest.TopLevel("a.A").Bytes()
	old[6], old[7] = 0, 44

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", valid[:6]},
		{"magic", badMagic},
		{"major version", old},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := artifact.Read("bad.class", tt.data)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, artifact.ErrBadHeader)

			var perr *artifact.ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "bad.class", perr.Origin)
		})
	}
}

func TestRead_Truncated(t *testing.T) {
	t.Parallel()

	data := artifacttest.Member("a.Outer", "Inner", "y", "z").Bytes()

	// Every proper prefix past the header is an incomplete structure
	for n := 10; n < len(data); n++ {
		_, err := artifact.Read("cut.class", data[:n])
		require.Error(t, err, "prefix of %d bytes", n)
		assert.ErrorIs(t, err, artifact.ErrTruncated, "prefix of %d bytes", n)
	}
}

func TestRead_TrailingBytes(t *testing.T) {
	t.Parallel()

	data := append(artifacttest.TopLevel("a.A", "x").Bytes(), 0x00)

	_, err := artifact.Read("trail.class", data)
	assert.ErrorIs(t, err, artifact.ErrMalformed)
}

func TestRead_Descriptors(t *testing.T) {
	t.Parallel()

	pkgInfo, err := artifact.Read("package-info.class", artifacttest.TopLevel("a.b.package-info").Bytes())
	require.NoError(t, err)
	assert.True(t, pkgInfo.IsDescriptor())

	module, err := artifact.Read("module-info.class", artifacttest.Class{Name: "module-info", Access: artifact.AccModule}.Bytes())
	require.NoError(t, err)
	assert.True(t, module.IsDescriptor())

	plain, err := artifact.Read("A.class", artifacttest.TopLevel("a.A").Bytes())
	require.NoError(t, err)
	assert.False(t, plain.IsDescriptor())
}

func TestBinaryNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Outer$Inner", artifact.BinarySimpleName("a.b.Outer$Inner"))
	assert.Equal(t, "Top", artifact.BinarySimpleName("Top"))
	assert.Equal(t, "a.b", artifact.PackageOf("a.b.Outer$Inner"))
	assert.Equal(t, "", artifact.PackageOf("Top"))
}
