package stub

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const indentUnit = "  "

// Render writes one package in stub notation:
//
//	package a.b;
//	class Outer {
//	  class Inner {
//	    int y;
//	  }
//	  int x;
//	}
//
// The package line is omitted for the unnamed package.
func Render(w io.Writer, pu PackageUnit) error {
	bw := bufio.NewWriter(w)
	if pu.Package != "" {
		bw.WriteString("package ")
		bw.WriteString(pu.Package)
		bw.WriteString(";\n")
	}
	for _, u := range pu.Units {
		renderUnit(bw, u, 0)
	}
	return bw.Flush()
}

// Format renders one package into memory.
func Format(pu PackageUnit) []byte {
	var buf bytes.Buffer
	_ = Render(&buf, pu) // bytes.Buffer never fails
	return buf.Bytes()
}

func renderUnit(w *bufio.Writer, u *Unit, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	w.WriteString(indent)
	w.WriteString("class ")
	w.WriteString(u.Name)
	w.WriteString(" {\n")

	for _, n := range u.Nested {
		renderUnit(w, n, depth+1)
	}

	fieldIndent := indent + indentUnit
	for _, f := range u.Fields {
		w.WriteString(fieldIndent)
		w.WriteString(f.Type)
		w.WriteByte(' ')
		w.WriteString(f.Name)
		w.WriteString(";\n")
	}

	w.WriteString(indent)
	w.WriteString("}\n")
}

// FileName returns the file a package is written to by directory sinks.
func FileName(pkg string) string {
	if pkg == "" {
		return "_default.java"
	}
	return pkg + ".java"
}
