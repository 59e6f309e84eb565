package artifact

import (
	"context"
	"fmt"
	"strconv"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// typeDeclarations are the tree-sitter kinds that declare a class-like type.
var typeDeclarations = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// SourceReader produces Artifacts from Java source files, for libraries that
// are only available as source. Binary names follow javac's scheme so the
// result nests exactly like the compiled form.
type SourceReader struct {
	language *sitter.Language
}

// NewSourceReader creates a Java source reader.
func NewSourceReader() *SourceReader {
	return &SourceReader{
		language: sitter.NewLanguage(java.Language()),
	}
}

// Parse returns one Artifact per type declared in src, including local and
// anonymous classes, in declaration order.
func (s *SourceReader) Parse(ctx context.Context, origin string, src []byte) ([]*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(s.language); err != nil {
		return nil, fmt.Errorf("failed to set java language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, &ParseError{Origin: origin, Offset: -1, Err: ErrBadSyntax}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Origin: origin, Offset: firstErrorOffset(root), Err: ErrBadSyntax}
	}

	w := &sourceWalker{
		origin:    origin,
		source:    src,
		anonymous: make(map[string]int),
		locals:    make(map[string]int),
	}
	w.pkg = packageName(root, src)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(uint(i))
		if typeDeclarations[child.Kind()] {
			w.declare(child, nil, KindTopLevel)
		}
	}
	return w.artifacts, nil
}

// sourceWalker accumulates artifacts for one compilation unit.
type sourceWalker struct {
	origin    string
	source    []byte
	pkg       string
	artifacts []*Artifact
	anonymous map[string]int // enclosing binary name -> last anonymous index
	locals    map[string]int // enclosing binary name + "$" + local name -> last index
}

// declare records a named type declaration and walks its body.
func (w *sourceWalker) declare(node *sitter.Node, owner *Artifact, kind Kind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	simple := nodeText(nameNode, w.source)

	var name string
	switch kind {
	case KindTopLevel:
		name = simple
		if w.pkg != "" {
			name = w.pkg + "." + simple
		}
	case KindMember:
		name = owner.Name + "$" + simple
	case KindLocal:
		key := owner.Name + "$" + simple
		w.locals[key]++
		name = owner.Name + "$" + strconv.Itoa(w.locals[key]) + simple
	}

	a := &Artifact{
		Name:       name,
		Package:    w.pkg,
		SimpleName: simple,
		Kind:       kind,
		Flags:      declarationFlags(node.Kind()),
		Origin:     w.origin,
	}
	if owner != nil {
		a.Enclosing = owner.Name
	}
	w.artifacts = append(w.artifacts, a)

	if node.Kind() == "record_declaration" {
		w.recordComponents(node, a)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkBody(body, a)
	}
}

// declareAnonymous records the class body of an anonymous class.
func (w *sourceWalker) declareAnonymous(body *sitter.Node, owner *Artifact) {
	w.anonymous[owner.Name]++
	a := &Artifact{
		Name:      owner.Name + "$" + strconv.Itoa(w.anonymous[owner.Name]),
		Package:   w.pkg,
		Enclosing: owner.Name,
		Kind:      KindAnonymous,
		Origin:    w.origin,
	}
	w.artifacts = append(w.artifacts, a)
	w.walkBody(body, a)
}

// walkBody visits the direct members of a type body.
func (w *sourceWalker) walkBody(body *sitter.Node, owner *Artifact) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(uint(i))
		kind := child.Kind()
		switch {
		case typeDeclarations[kind]:
			w.declare(child, owner, KindMember)
		case kind == "field_declaration" || kind == "constant_declaration":
			w.fieldDeclarators(child, owner)
			w.scanLocal(child, owner)
		case kind == "enum_constant":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				owner.Fields = append(owner.Fields, Field{Name: nodeText(nameNode, w.source)})
			}
			if constantBody := child.ChildByFieldName("body"); constantBody != nil {
				w.declareAnonymous(constantBody, owner)
			}
		case kind == "enum_body_declarations":
			w.walkBody(child, owner)
		default:
			// methods, constructors, initializers
			w.scanLocal(child, owner)
		}
	}
}

// scanLocal finds local and anonymous classes below a member.
func (w *sourceWalker) scanLocal(node *sitter.Node, owner *Artifact) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(uint(i))
		switch {
		case typeDeclarations[child.Kind()]:
			w.declare(child, owner, KindLocal)
		case child.Kind() == "object_creation_expression":
			// arguments are evaluated in the enclosing scope
			if args := child.ChildByFieldName("arguments"); args != nil {
				w.scanLocal(args, owner)
			}
			if body := findChildByType(child, "class_body"); body != nil {
				w.declareAnonymous(body, owner)
			}
		default:
			w.scanLocal(child, owner)
		}
	}
}

func (w *sourceWalker) fieldDeclarators(node *sitter.Node, owner *Artifact) {
	for _, decl := range findChildrenByType(node, "variable_declarator") {
		if nameNode := decl.ChildByFieldName("name"); nameNode != nil {
			owner.Fields = append(owner.Fields, Field{Name: nodeText(nameNode, w.source)})
		}
	}
}

// recordComponents adds the implicit private fields of a record.
func (w *sourceWalker) recordComponents(node *sitter.Node, owner *Artifact) {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for _, param := range findChildrenByType(params, "formal_parameter") {
		if nameNode := param.ChildByFieldName("name"); nameNode != nil {
			owner.Fields = append(owner.Fields, Field{Name: nodeText(nameNode, w.source)})
		}
	}
}

func declarationFlags(kind string) uint16 {
	switch kind {
	case "interface_declaration":
		return AccInterface
	case "annotation_type_declaration":
		return AccInterface | AccAnnotation
	case "enum_declaration":
		return AccEnum
	}
	return 0
}

// packageName extracts the package declaration, "" when absent.
func packageName(root *sitter.Node, source []byte) string {
	decl := findChildByType(root, "package_declaration")
	if decl == nil {
		return ""
	}
	nameNode := findChildByType(decl, "scoped_identifier")
	if nameNode == nil {
		nameNode = findChildByType(decl, "identifier")
	}
	return nodeText(nameNode, source)
}

func firstErrorOffset(node *sitter.Node) int {
	offset := -1
	walkTree(node, func(n *sitter.Node) bool {
		if offset >= 0 {
			return false
		}
		if n.IsError() || n.IsMissing() {
			offset = int(n.StartByte())
			return false
		}
		return n.HasError()
	})
	return offset
}

// nodeText extracts the text content of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}
