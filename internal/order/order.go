// Package order imposes the total, reproducible emission order over a
// resolved namespace: byte-wise lexical order of the fully-qualified name at
// every level. It only reorders views; nodes are never touched.
package order

import (
	"sort"

	"github.com/mvp-joe/class-shadow/internal/symtab"
)

// Packages returns the namespace's packages sorted by path.
func Packages(ns *symtab.Namespace) []*symtab.Package {
	pkgs := ns.Packages()
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Path < pkgs[j].Path })
	return pkgs
}

// Classes returns a package's top-level classes sorted by binary name.
func Classes(pkg *symtab.Package) []*symtab.SymbolNode {
	classes := make([]*symtab.SymbolNode, len(pkg.Classes))
	copy(classes, pkg.Classes)
	byQualifiedName(classes)
	return classes
}

// Nested returns a node's nested classes sorted by binary name.
func Nested(node *symtab.SymbolNode) []*symtab.SymbolNode {
	children := node.Children()
	byQualifiedName(children)
	return children
}

// Fields returns a node's field identifiers sorted.
func Fields(node *symtab.SymbolNode) []string {
	fields := node.Fields()
	sort.Strings(fields)
	return fields
}

func byQualifiedName(nodes []*symtab.SymbolNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].QualifiedName() < nodes[j].QualifiedName()
	})
}
