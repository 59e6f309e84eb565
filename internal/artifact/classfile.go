package artifact

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	classMagic       uint32 = 0xCAFEBABE
	minMajorVersion         = 45
	classHeaderBytes        = 10 // magic + minor + major + constant_pool_count
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type constant struct {
	tag  uint8
	utf8 string
	ref  uint16 // name_index for Class entries
}

// innerClass is one row of the InnerClasses attribute.
type innerClass struct {
	inner  uint16
	outer  uint16
	name   uint16
	access uint16
}

// classReader walks a class file front to back.
type classReader struct {
	origin string
	data   []byte
	pos    int
	pool   []constant
}

// Read parses one compiled class file into an Artifact. Only the structure
// needed for the shadow is kept: the class's own name, its enclosing class,
// and the declared field names in file order.
func Read(origin string, data []byte) (*Artifact, error) {
	r := &classReader{origin: origin, data: data}
	return r.read()
}

func (r *classReader) read() (*Artifact, error) {
	if len(r.data) < classHeaderBytes {
		return nil, r.failAt(0, ErrBadHeader)
	}
	magic, _ := r.u4()
	if magic != classMagic {
		return nil, r.failAt(0, fmt.Errorf("%w: magic %#08x", ErrBadHeader, magic))
	}
	r.skip(2) // minor_version
	major, _ := r.u2()
	if major < minMajorVersion {
		return nil, r.failAt(6, fmt.Errorf("%w: major version %d", ErrBadHeader, major))
	}

	if err := r.readConstantPool(); err != nil {
		return nil, err
	}

	access, err := r.u2()
	if err != nil {
		return nil, err
	}
	thisIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	internalName, err := r.className(thisIdx)
	if err != nil {
		return nil, err
	}
	if err := r.skip(2); err != nil { // super_class
		return nil, err
	}
	ifaces, err := r.u2()
	if err != nil {
		return nil, err
	}
	if err := r.skip(2 * int(ifaces)); err != nil {
		return nil, err
	}

	fields, err := r.readFields()
	if err != nil {
		return nil, err
	}
	if err := r.skipMembers(); err != nil { // methods
		return nil, err
	}

	inners, enclosingIdx, synthetic, err := r.readClassAttributes()
	if err != nil {
		return nil, err
	}
	if r.pos != len(r.data) {
		return nil, r.fail(fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(r.data)-r.pos))
	}
	if synthetic {
		access |= AccSynthetic
	}

	name := internalToBinary(internalName)
	a := &Artifact{
		Name:       name,
		Package:    PackageOf(name),
		SimpleName: BinarySimpleName(name),
		Kind:       KindTopLevel,
		Flags:      access,
		Fields:     fields,
		Origin:     r.origin,
	}
	if err := r.resolveNesting(a, thisIdx, inners, enclosingIdx); err != nil {
		return nil, err
	}
	return a, nil
}

// resolveNesting fills SimpleName, Enclosing and Kind from the InnerClasses
// row describing this class, falling back to EnclosingMethod for local and
// anonymous classes.
func (r *classReader) resolveNesting(a *Artifact, thisIdx uint16, inners []innerClass, enclosingIdx uint16) error {
	var self *innerClass
	for i := range inners {
		if inners[i].inner == thisIdx {
			self = &inners[i]
			break
		}
	}

	if self == nil {
		if enclosingIdx == 0 {
			return nil
		}
		outer, err := r.className(enclosingIdx)
		if err != nil {
			return err
		}
		a.Kind = KindAnonymous
		a.SimpleName = ""
		a.Enclosing = internalToBinary(outer)
		return nil
	}

	a.Flags |= self.access & AccSynthetic
	if self.name == 0 {
		a.SimpleName = ""
	} else {
		simple, err := r.utf8(self.name)
		if err != nil {
			return err
		}
		a.SimpleName = simple
	}

	switch {
	case self.outer != 0:
		outer, err := r.className(self.outer)
		if err != nil {
			return err
		}
		a.Kind = KindMember
		a.Enclosing = internalToBinary(outer)
	case self.name == 0:
		a.Kind = KindAnonymous
	default:
		a.Kind = KindLocal
	}

	if a.Enclosing == "" && enclosingIdx != 0 {
		outer, err := r.className(enclosingIdx)
		if err != nil {
			return err
		}
		a.Enclosing = internalToBinary(outer)
	}
	return nil
}

func (r *classReader) readConstantPool() error {
	count, err := r.u2()
	if err != nil {
		return err
	}
	if count == 0 {
		return r.fail(fmt.Errorf("%w: empty constant pool", ErrMalformed))
	}

	r.pool = make([]constant, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return err
		}
		c := constant{tag: tag}
		switch tag {
		case tagUtf8:
			n, err := r.u2()
			if err != nil {
				return err
			}
			raw, err := r.bytes(int(n))
			if err != nil {
				return err
			}
			s, ok := decodeModifiedUTF8(raw)
			if !ok {
				return r.fail(fmt.Errorf("%w: invalid modified UTF-8 in constant %d", ErrMalformed, i))
			}
			c.utf8 = s
		case tagClass:
			if c.ref, err = r.u2(); err != nil {
				return err
			}
		case tagString, tagMethodType, tagModule, tagPackage:
			err = r.skip(2)
		case tagMethodHandle:
			err = r.skip(3)
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			err = r.skip(4)
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return err
			}
			r.pool[i] = c
			i++ // eight-byte constants take two slots
			continue
		default:
			return r.fail(fmt.Errorf("%w: unknown constant tag %d at index %d", ErrMalformed, tag, i))
		}
		if err != nil {
			return err
		}
		r.pool[i] = c
	}
	return nil
}

func (r *classReader) readFields() ([]Field, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, count)
	for i := 0; i < int(count); i++ {
		access, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := r.utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		if err := r.skip(2); err != nil { // descriptor_index: types are erased
			return nil, err
		}
		synthetic, err := r.skipAttributes()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Name:      name,
			Synthetic: access&AccSynthetic != 0 || synthetic,
		})
	}
	return fields, nil
}

func (r *classReader) skipMembers() error {
	count, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := r.skip(6); err != nil { // access, name, descriptor
			return err
		}
		if _, err := r.skipAttributes(); err != nil {
			return err
		}
	}
	return nil
}

// skipAttributes skips an attribute table and reports whether it held a
// Synthetic attribute (pre-1.5 compilers mark synthetic members that way).
func (r *classReader) skipAttributes() (bool, error) {
	count, err := r.u2()
	if err != nil {
		return false, err
	}
	synthetic := false
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.u2()
		if err != nil {
			return false, err
		}
		length, err := r.u4()
		if err != nil {
			return false, err
		}
		if name, err := r.utf8(nameIdx); err == nil && name == "Synthetic" {
			synthetic = true
		}
		if err := r.skip(int(length)); err != nil {
			return false, err
		}
	}
	return synthetic, nil
}

func (r *classReader) readClassAttributes() (inners []innerClass, enclosingIdx uint16, synthetic bool, err error) {
	count, err := r.u2()
	if err != nil {
		return nil, 0, false, err
	}
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, 0, false, err
		}
		length, err := r.u4()
		if err != nil {
			return nil, 0, false, err
		}
		name, err := r.utf8(nameIdx)
		if err != nil {
			return nil, 0, false, err
		}
		start := r.pos

		switch name {
		case "InnerClasses":
			rows, err := r.readInnerClasses(length)
			if err != nil {
				return nil, 0, false, err
			}
			inners = append(inners, rows...)
		case "EnclosingMethod":
			if length != 4 {
				return nil, 0, false, r.fail(fmt.Errorf("%w: EnclosingMethod length %d", ErrMalformed, length))
			}
			if enclosingIdx, err = r.u2(); err != nil {
				return nil, 0, false, err
			}
			if err := r.skip(2); err != nil {
				return nil, 0, false, err
			}
		case "Synthetic":
			synthetic = true
			if err := r.skip(int(length)); err != nil {
				return nil, 0, false, err
			}
		default:
			if err := r.skip(int(length)); err != nil {
				return nil, 0, false, err
			}
		}

		if r.pos != start+int(length) {
			return nil, 0, false, r.fail(fmt.Errorf("%w: attribute %s length mismatch", ErrMalformed, name))
		}
	}
	return inners, enclosingIdx, synthetic, nil
}

func (r *classReader) readInnerClasses(length uint32) ([]innerClass, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	if uint32(n)*8+2 != length {
		return nil, r.fail(fmt.Errorf("%w: InnerClasses holds %d rows in %d bytes", ErrMalformed, n, length))
	}
	rows := make([]innerClass, n)
	for i := range rows {
		raw, err := r.bytes(8)
		if err != nil {
			return nil, err
		}
		rows[i] = innerClass{
			inner:  binary.BigEndian.Uint16(raw[0:]),
			outer:  binary.BigEndian.Uint16(raw[2:]),
			name:   binary.BigEndian.Uint16(raw[4:]),
			access: binary.BigEndian.Uint16(raw[6:]),
		}
	}
	return rows, nil
}

func (r *classReader) utf8(idx uint16) (string, error) {
	if idx == 0 || int(idx) >= len(r.pool) {
		return "", r.fail(fmt.Errorf("%w: constant index %d out of range", ErrMalformed, idx))
	}
	c := r.pool[idx]
	if c.tag != tagUtf8 {
		return "", r.fail(fmt.Errorf("%w: constant %d is tag %d, want Utf8", ErrMalformed, idx, c.tag))
	}
	return c.utf8, nil
}

func (r *classReader) className(idx uint16) (string, error) {
	if idx == 0 || int(idx) >= len(r.pool) {
		return "", r.fail(fmt.Errorf("%w: class index %d out of range", ErrMalformed, idx))
	}
	c := r.pool[idx]
	if c.tag != tagClass {
		return "", r.fail(fmt.Errorf("%w: constant %d is tag %d, want Class", ErrMalformed, idx, c.tag))
	}
	return r.utf8(c.ref)
}

func (r *classReader) u1() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *classReader) u2() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *classReader) u4() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *classReader) bytes(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.pos < n {
		return nil, r.fail(ErrTruncated)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *classReader) skip(n int) error {
	_, err := r.bytes(n)
	return err
}

func (r *classReader) fail(err error) error {
	return r.failAt(r.pos, err)
}

func (r *classReader) failAt(offset int, err error) error {
	return &ParseError{Origin: r.origin, Offset: offset, Err: err}
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is two bytes and
// supplementary characters are encoded as surrogate pairs.
func decodeModifiedUTF8(b []byte) (string, bool) {
	plain := true
	for _, c := range b {
		if c == 0 || c == 0xC0 || c == 0xED {
			plain = false
			break
		}
	}
	if plain && utf8.Valid(b) {
		return string(b), true
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", false
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", false
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", false
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", false
		}
	}
	return string(utf16.Decode(units)), true
}
