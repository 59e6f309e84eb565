package artifact

import "strings"

// Kind classifies how a class is nested.
type Kind string

const (
	KindTopLevel  Kind = "top-level"
	KindMember    Kind = "member"
	KindLocal     Kind = "local"     // declared inside a method or initializer
	KindAnonymous Kind = "anonymous" // no source name
)

// Class access flags used by the reader.
const (
	AccPublic     uint16 = 0x0001
	AccInterface  uint16 = 0x0200
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
	AccModule     uint16 = 0x8000
)

// Field is one declared member field.
type Field struct {
	Name      string
	Synthetic bool // compiler-generated (this$0, $VALUES, $assertionsDisabled)
}

// Artifact is one compiled class unit after parsing.
// It is immutable once returned by a reader.
type Artifact struct {
	Name       string // Binary name with dotted package, e.g. "java.util.Map$Entry"
	Package    string // "" for the unnamed package
	SimpleName string // Source name; "" for anonymous classes
	Enclosing  string // Binary name of the immediately enclosing class, "" for top-level
	Kind       Kind
	Flags      uint16
	Fields     []Field // File order, no deduplication
	Origin     string  // Path or "archive.jar!entry" the bytes came from
}

// Synthetic reports whether the class itself is compiler-generated.
func (a *Artifact) Synthetic() bool {
	return a.Flags&AccSynthetic != 0
}

// IsDescriptor reports whether the artifact is a module-info or package-info
// unit, which carries no structural shadow.
func (a *Artifact) IsDescriptor() bool {
	if a.Flags&AccModule != 0 {
		return true
	}
	base := BinarySimpleName(a.Name)
	return base == "package-info" || base == "module-info"
}

// BinarySimpleName returns the part of a binary name after the package,
// e.g. "Outer$Inner" for "a.b.Outer$Inner".
func BinarySimpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// PackageOf returns the dotted package of a binary name.
func PackageOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// internalToBinary converts "java/util/Map$Entry" to "java.util.Map$Entry".
func internalToBinary(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
