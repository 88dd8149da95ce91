package decode

import (
	"errors"
	"fmt"
	"strings"
)

// Shape is the canonical value shape a field is coerced to.
type Shape int

const (
	ShapeString Shape = iota + 1
	ShapeInt
	ShapeNumber
	ShapeBool
	ShapeStringList
	ShapeStringMap
	ShapeObject
	ShapeObjectList
)

var shapeNames = map[Shape]string{
	ShapeString:     "string",
	ShapeInt:        "int",
	ShapeNumber:     "number",
	ShapeBool:       "bool",
	ShapeStringList: "string_list",
	ShapeStringMap:  "string_map",
	ShapeObject:     "object",
	ShapeObjectList: "object_list",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// IsList reports whether nested matches for the shape are concatenated.
func (s Shape) IsList() bool { return s == ShapeStringList || s == ShapeObjectList }

// ParseShape maps a shape name ("string", "object_list", ...) to a Shape.
func ParseShape(name string) (Shape, error) {
	for s, n := range shapeNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", name)
}

// Field declares one canonical field of a record.
type Field struct {
	Name     string
	Shape    Shape
	Required bool
	// Aliases are tried in order after the exact name.
	Aliases []string
	// Nested paths such as "sections[*].items" or "student_version.title".
	Nested []string
	// SubKey turns a mapping into a string by taking that key, e.g. "text".
	SubKey string
	// Keys is the canonical key set of a string map. Empty keeps every key.
	Keys    []string
	Default any
	// Item describes the elements of object and object_list fields.
	Item *Descriptor
}

type segment struct {
	key  string
	each bool
}

type compiledField struct {
	Field
	paths [][]segment
	// zero is the coerced default used when an optional field is unresolved.
	zero any
}

// Descriptor is an immutable description of one target record type.
// It is safe for concurrent use.
type Descriptor struct {
	name   string
	fields []compiledField
	index  map[string]int
}

// NewDescriptor validates fields and returns a descriptor that owns copies of them.
func NewDescriptor(name string, fields ...Field) (*Descriptor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("descriptor: empty name")
	}
	d := &Descriptor{
		name:   name,
		fields: make([]compiledField, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		cf, err := compileField(f)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", name, err)
		}
		if _, dup := d.index[cf.Name]; dup {
			return nil, fmt.Errorf("descriptor %s: duplicate field %q", name, cf.Name)
		}
		d.index[cf.Name] = len(d.fields)
		d.fields = append(d.fields, cf)
	}
	if len(d.fields) == 0 {
		return nil, fmt.Errorf("descriptor %s: no fields", name)
	}
	return d, nil
}

// MustDescriptor is NewDescriptor for package-level declarations.
func MustDescriptor(name string, fields ...Field) *Descriptor {
	d, err := NewDescriptor(name, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Name() string { return d.name }

// Fields returns copies of the declared fields in declaration order.
func (d *Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	for i, cf := range d.fields {
		out[i] = copyField(cf.Field)
	}
	return out
}

// Field looks up a declared field by canonical name.
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return copyField(d.fields[i].Field), true
}

// Required lists the canonical names of required fields.
func (d *Descriptor) Required() []string {
	var out []string
	for _, cf := range d.fields {
		if cf.Required {
			out = append(out, cf.Name)
		}
	}
	return out
}

func compileField(f Field) (compiledField, error) {
	f = copyField(f)
	if err := checkKey(f.Name); err != nil {
		return compiledField{}, fmt.Errorf("field name: %w", err)
	}
	if _, ok := shapeNames[f.Shape]; !ok {
		return compiledField{}, fmt.Errorf("field %q: invalid shape %d", f.Name, int(f.Shape))
	}
	for _, a := range f.Aliases {
		if err := checkKey(a); err != nil {
			return compiledField{}, fmt.Errorf("field %q alias: %w", f.Name, err)
		}
	}
	switch f.Shape {
	case ShapeObject, ShapeObjectList:
		if f.Item == nil {
			return compiledField{}, fmt.Errorf("field %q: %s needs an item descriptor", f.Name, f.Shape)
		}
	default:
		if f.Item != nil {
			return compiledField{}, fmt.Errorf("field %q: item descriptor only allowed on object shapes", f.Name)
		}
	}
	if f.SubKey != "" && f.Shape != ShapeString && f.Shape != ShapeStringList {
		return compiledField{}, fmt.Errorf("field %q: sub_key only allowed on string shapes", f.Name)
	}
	if len(f.Keys) > 0 && f.Shape != ShapeStringMap {
		return compiledField{}, fmt.Errorf("field %q: keys only allowed on string_map", f.Name)
	}
	for i, k := range f.Keys {
		f.Keys[i] = strings.ToLower(strings.TrimSpace(k))
		if f.Keys[i] == "" {
			return compiledField{}, fmt.Errorf("field %q: empty map key", f.Name)
		}
	}

	cf := compiledField{Field: f}
	for _, p := range f.Nested {
		segs, err := parsePath(p)
		if err != nil {
			return compiledField{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		cf.paths = append(cf.paths, segs)
	}

	var src any = f.Default
	if src == nil {
		src = zeroSource(f.Shape)
	}
	zero, err := coerce(src, &cf, f.Name)
	if err != nil {
		if f.Default == nil {
			return compiledField{}, fmt.Errorf("field %q: optional %s needs a default: %w", f.Name, f.Shape, err)
		}
		return compiledField{}, fmt.Errorf("field %q: bad default: %w", f.Name, err)
	}
	cf.zero = zero
	return cf, nil
}

func zeroSource(s Shape) any {
	switch s {
	case ShapeString:
		return ""
	case ShapeInt, ShapeNumber:
		return float64(0)
	case ShapeBool:
		return false
	case ShapeStringList, ShapeObjectList:
		return []any{}
	default:
		return map[string]any{}
	}
}

func checkKey(k string) error {
	if k == "" {
		return errors.New("empty key")
	}
	if strings.ContainsAny(k, ".[]") {
		return fmt.Errorf("key %q contains path characters", k)
	}
	return nil
}

// parsePath reads "a[*].b.c" into segments. "[*]" fans out over a list.
func parsePath(p string) ([]segment, error) {
	if p == "" {
		return nil, errors.New("empty nested path")
	}
	parts := strings.Split(p, ".")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		s := segment{key: part}
		if strings.HasSuffix(part, "[*]") {
			s.key = strings.TrimSuffix(part, "[*]")
			s.each = true
		}
		if err := checkKey(s.key); err != nil {
			return nil, fmt.Errorf("nested path %q: %w", p, err)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

func copyField(f Field) Field {
	f.Aliases = append([]string(nil), f.Aliases...)
	f.Nested = append([]string(nil), f.Nested...)
	f.Keys = append([]string(nil), f.Keys...)
	return f
}
