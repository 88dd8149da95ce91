// Package schemas holds the descriptors of every document kind the service
// generates, declared in embedded YAML files.
package schemas

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"profeic/api/internal/decode"
)

//go:embed *.yaml
var builtinFS embed.FS

type fileSpec struct {
	Kind     string         `yaml:"kind"`
	Title    string         `yaml:"title"`
	Fields   []fieldSpec    `yaml:"fields"`
	Fallback map[string]any `yaml:"fallback"`
}

type itemSpec struct {
	Name   string      `yaml:"name"`
	Fields []fieldSpec `yaml:"fields"`
}

type fieldSpec struct {
	Name     string    `yaml:"name"`
	Shape    string    `yaml:"shape"`
	Required bool      `yaml:"required"`
	Aliases  []string  `yaml:"aliases"`
	Nested   []string  `yaml:"nested"`
	SubKey   string    `yaml:"sub_key"`
	Keys     []string  `yaml:"keys"`
	Default  any       `yaml:"default"`
	Item     *itemSpec `yaml:"item"`
}

// Schema is one document kind.
type Schema struct {
	Kind       string
	Title      string
	Descriptor *decode.Descriptor
	fallback   map[string]any
}

// Registry maps kinds to schemas. It is read-only once loaded.
type Registry struct {
	byKind map[string]*Schema
}

// Load reads every *.yaml file at the root of fsys.
func Load(fsys fs.FS) (*Registry, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("schemas: no descriptor files")
	}
	r := &Registry{byKind: make(map[string]*Schema, len(names))}
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		s, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("schemas: %s: %w", path.Base(name), err)
		}
		if _, dup := r.byKind[s.Kind]; dup {
			return nil, fmt.Errorf("schemas: %s: duplicate kind %q", name, s.Kind)
		}
		r.byKind[s.Kind] = s
	}
	return r, nil
}

func parse(raw []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var spec fileSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}
	if spec.Kind == "" {
		return nil, errors.New("missing kind")
	}
	d, err := compile(spec.Kind, spec.Fields)
	if err != nil {
		return nil, err
	}
	s := &Schema{Kind: spec.Kind, Title: spec.Title, Descriptor: d, fallback: spec.Fallback}
	if s.Title == "" {
		s.Title = s.Kind
	}
	if spec.Fallback != nil {
		if _, err := decode.Normalize(spec.Fallback, d); err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}
	return s, nil
}

func compile(name string, specs []fieldSpec) (*decode.Descriptor, error) {
	fields := make([]decode.Field, 0, len(specs))
	for _, spec := range specs {
		shape, err := decode.ParseShape(spec.Shape)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", spec.Name, err)
		}
		f := decode.Field{
			Name:     spec.Name,
			Shape:    shape,
			Required: spec.Required,
			Aliases:  spec.Aliases,
			Nested:   spec.Nested,
			SubKey:   spec.SubKey,
			Keys:     spec.Keys,
			Default:  spec.Default,
		}
		if spec.Item != nil {
			itemName := spec.Item.Name
			if itemName == "" {
				itemName = name + "_" + spec.Name
			}
			if f.Item, err = compile(itemName, spec.Item.Fields); err != nil {
				return nil, fmt.Errorf("field %q: %w", spec.Name, err)
			}
		}
		fields = append(fields, f)
	}
	return decode.NewDescriptor(name, fields...)
}

// Lookup returns the descriptor for kind.
func (r *Registry) Lookup(kind string) (*decode.Descriptor, bool) {
	s, ok := r.byKind[kind]
	if !ok {
		return nil, false
	}
	return s.Descriptor, true
}

// Schema returns the full schema entry for kind.
func (r *Registry) Schema(kind string) (*Schema, bool) {
	s, ok := r.byKind[kind]
	return s, ok
}

// Fallback returns a fresh copy of the canned record for kind, if one is declared.
func (r *Registry) Fallback(kind string) (decode.Record, bool) {
	s, ok := r.byKind[kind]
	if !ok || s.fallback == nil {
		return nil, false
	}
	rec, err := decode.Normalize(s.fallback, s.Descriptor)
	if err != nil {
		// Validated in Load.
		return nil, false
	}
	return rec, true
}

// Kinds lists the registered kinds in lexical order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	builtinOnce sync.Once
	builtin     *Registry
)

// Builtin returns the registry loaded from the embedded descriptor files.
// The files ship with the binary, so a load error is a programming error.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		r, err := Load(builtinFS)
		if err != nil {
			panic(err)
		}
		builtin = r
	})
	return builtin
}

// Lookup is Builtin().Lookup.
func Lookup(kind string) (*decode.Descriptor, bool) { return Builtin().Lookup(kind) }

// Kinds is Builtin().Kinds.
func Kinds() []string { return Builtin().Kinds() }
