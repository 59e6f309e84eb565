// Package stub turns resolved symbol nodes into placeholder-typed class
// declarations and renders them in stub notation.
package stub

import (
	"github.com/mvp-joe/class-shadow/internal/order"
	"github.com/mvp-joe/class-shadow/internal/symtab"
)

// Placeholder is the single type every field is declared with. It is a fixed
// tag, never derived from a real descriptor.
const Placeholder = "int"

// Field is one field declaration with its type erased.
type Field struct {
	Name string
	Type string
}

// Unit is the structural declaration of one class and its nested classes.
type Unit struct {
	Name          string
	QualifiedName string
	Nested        []*Unit
	Fields        []Field
}

// PackageUnit groups the top-level units of one package in emission order.
type PackageUnit struct {
	Package string
	Units   []*Unit
}

// Synthesize builds the unit for node: nested classes first, then fields,
// both in deterministic order.
func Synthesize(node *symtab.SymbolNode) *Unit {
	u := &Unit{
		Name:          node.Name(),
		QualifiedName: node.QualifiedName(),
	}
	for _, child := range order.Nested(node) {
		u.Nested = append(u.Nested, Synthesize(child))
	}
	for _, name := range order.Fields(node) {
		u.Fields = append(u.Fields, Field{Name: name, Type: Placeholder})
	}
	return u
}

// SynthesizeNamespace builds one PackageUnit per package, packages and
// classes in deterministic order.
func SynthesizeNamespace(ns *symtab.Namespace) []PackageUnit {
	pkgs := order.Packages(ns)
	out := make([]PackageUnit, 0, len(pkgs))
	for _, pkg := range pkgs {
		pu := PackageUnit{Package: pkg.Path}
		for _, class := range order.Classes(pkg) {
			pu.Units = append(pu.Units, Synthesize(class))
		}
		out = append(out, pu)
	}
	return out
}

// Count returns the number of classes and fields in the units, nested ones included.
func Count(units []PackageUnit) (classes, fields int) {
	var walk func(u *Unit)
	walk = func(u *Unit) {
		classes++
		fields += len(u.Fields)
		for _, n := range u.Nested {
			walk(n)
		}
	}
	for _, pu := range units {
		for _, u := range pu.Units {
			walk(u)
		}
	}
	return classes, fields
}
