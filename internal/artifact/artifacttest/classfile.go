// Package artifacttest encodes minimal class files for tests.
package artifacttest

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Field is a field to emit in a generated class.
type Field struct {
	Name   string
	Access uint16
}

// Class describes a class file to generate. Names are binary names with a
// dotted package ("a.b.Outer$Inner").
type Class struct {
	Name       string
	Major      uint16 // defaults to 52 (Java 8)
	Access     uint16
	Fields     []Field
	Members    []string // member classes listed in InnerClasses with this class as outer
	Outer      string   // enclosing class for member classes
	SimpleName string   // inner_name; required for member and local classes
	Nested     bool     // emit an InnerClasses row for this class
	// EnclosingClass emits an EnclosingMethod attribute (local and anonymous classes).
	EnclosingClass string
}

// Member is shorthand for a member class nested in outer.
func Member(outer, simple string, fields ...string) Class {
	return Class{
		Name:       outer + "$" + simple,
		Outer:      outer,
		SimpleName: simple,
		Nested:     true,
		Fields:     plain(fields),
	}
}

// TopLevel is shorthand for a top-level class.
func TopLevel(name string, fields ...string) Class {
	return Class{Name: name, Fields: plain(fields)}
}

func plain(names []string) []Field {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		fields = append(fields, Field{Name: n})
	}
	return fields
}

// Bytes encodes the class file.
func (c Class) Bytes() []byte {
	p := newPool()

	thisIdx := p.class(c.Name)
	superIdx := p.class("java.lang.Object")
	p.long(42) // exercises two-slot constants
	p.str("shadow")

	type fieldRef struct {
		access     uint16
		name, desc uint16
	}
	fields := make([]fieldRef, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, fieldRef{access: f.Access, name: p.utf8(f.Name), desc: p.utf8("I")})
	}
	initName, initDesc := p.utf8("<init>"), p.utf8("()V")
	codeAttr := p.utf8("Code")

	type row struct{ inner, outer, name, access uint16 }
	var rows []row
	if c.Nested {
		r := row{inner: thisIdx}
		if c.Outer != "" {
			r.outer = p.class(c.Outer)
		}
		if c.SimpleName != "" {
			r.name = p.utf8(c.SimpleName)
		}
		r.access = c.Access & 0x1000
		rows = append(rows, r)
	}
	for _, m := range c.Members {
		rows = append(rows, row{
			inner: p.class(m),
			outer: thisIdx,
			name:  p.utf8(m[strings.LastIndexByte(m, '$')+1:]),
		})
	}
	var innerAttr, enclosingAttr, enclosingIdx uint16
	if len(rows) > 0 {
		innerAttr = p.utf8("InnerClasses")
	}
	if c.EnclosingClass != "" {
		enclosingAttr = p.utf8("EnclosingMethod")
		enclosingIdx = p.class(c.EnclosingClass)
	}

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }

	major := c.Major
	if major == 0 {
		major = 52
	}
	w(uint32(0xCAFEBABE))
	w(uint16(0))
	w(major)
	w(uint16(p.count()))
	buf.Write(p.buf.Bytes())

	w(c.Access | 0x0020)
	w(thisIdx)
	w(superIdx)
	w(uint16(0)) // interfaces

	w(uint16(len(fields)))
	for _, f := range fields {
		w(f.access)
		w(f.name)
		w(f.desc)
		w(uint16(0))
	}

	// one constructor with a trivial Code attribute
	w(uint16(1))
	w(uint16(0x0001))
	w(initName)
	w(initDesc)
	w(uint16(1))
	w(codeAttr)
	code := []byte{0, 1, 0, 1, 0, 0, 0, 1, 0xB1, 0, 0, 0, 0}
	w(uint32(len(code)))
	buf.Write(code)

	attrs := 0
	if len(rows) > 0 {
		attrs++
	}
	if enclosingAttr != 0 {
		attrs++
	}
	w(uint16(attrs))
	if len(rows) > 0 {
		w(innerAttr)
		w(uint32(2 + 8*len(rows)))
		w(uint16(len(rows)))
		for _, r := range rows {
			w(r.inner)
			w(r.outer)
			w(r.name)
			w(r.access)
		}
	}
	if enclosingAttr != 0 {
		w(enclosingAttr)
		w(uint32(4))
		w(enclosingIdx)
		w(uint16(0))
	}
	return buf.Bytes()
}

// pool builds a constant pool with deduplicated entries.
type pool struct {
	buf     bytes.Buffer
	next    uint16
	utf8s   map[string]uint16
	classes map[string]uint16
}

func newPool() *pool {
	return &pool{next: 1, utf8s: map[string]uint16{}, classes: map[string]uint16{}}
}

func (p *pool) count() uint16 { return p.next }

func (p *pool) utf8(s string) uint16 {
	if idx, ok := p.utf8s[s]; ok {
		return idx
	}
	p.buf.WriteByte(1)
	_ = binary.Write(&p.buf, binary.BigEndian, uint16(len(s)))
	p.buf.WriteString(s)
	idx := p.next
	p.next++
	p.utf8s[s] = idx
	return idx
}

func (p *pool) class(binaryName string) uint16 {
	if idx, ok := p.classes[binaryName]; ok {
		return idx
	}
	nameIdx := p.utf8(strings.ReplaceAll(binaryName, ".", "/"))
	p.buf.WriteByte(7)
	_ = binary.Write(&p.buf, binary.BigEndian, nameIdx)
	idx := p.next
	p.next++
	p.classes[binaryName] = idx
	return idx
}

func (p *pool) long(v int64) {
	p.buf.WriteByte(5)
	_ = binary.Write(&p.buf, binary.BigEndian, v)
	p.next += 2
}

func (p *pool) str(s string) {
	idx := p.utf8(s)
	p.buf.WriteByte(8)
	_ = binary.Write(&p.buf, binary.BigEndian, idx)
	p.next++
}
