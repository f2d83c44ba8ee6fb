package serviced

import (
	"bytes"
	"fmt"
	"sort"
)

// ModuleSuffix is the file suffix of the persisted binary module. On this
// platform the module is a loadable plugin object.
const ModuleSuffix = ".so"

// TypeKind classifies the types added to a module under construction.
type TypeKind int

const (
	// TypeKindBase marks the synthesized shared base adapter type.
	TypeKindBase TypeKind = iota

	// TypeKindCallback marks the resolver callback-shape type emitted
	// alongside a synthesized base type.
	TypeKindCallback

	// TypeKindWrapper marks a per-component wrapper type.
	TypeKindWrapper
)

// String returns the kind's name.
func (k TypeKind) String() string {
	switch k {
	case TypeKindBase:
		return "base"
	case TypeKindCallback:
		return "callback"
	default:
		return "wrapper"
	}
}

// TypeSpec describes one generated type in the module under construction.
// The module model is declarative: each type carries its rendered source
// fragment, and persistence stitches the fragments into a single synthetic
// source unit compiled into the binary module.
type TypeSpec struct {
	// Name is the generated type's name, unique within the module.
	Name string

	// Kind classifies the type.
	Kind TypeKind

	// BaseType names the type this one is rooted at. Empty for base and
	// callback types.
	BaseType string

	// Component is the name of the service object a wrapper type exposes.
	// Empty for non-wrapper types.
	Component string

	// Imports lists the import paths the source fragment relies on.
	Imports []string

	// Source is the rendered Go source fragment declaring the type.
	Source string
}

// ModuleBuilder is the binary module under construction. It accumulates
// module-level metadata and generated types, and renders them into a single
// synthetic source unit for compilation.
//
// A builder belongs to exactly one export invocation. During that export it
// is shared, in sequence, by every component wrapper spec; ownership is never
// transferred to any one of them. The builder is not safe for concurrent use.
type ModuleBuilder struct {
	name     string
	metadata MetadataBag
	types    []*TypeSpec
	byName   map[string]*TypeSpec
}

// NewModuleBuilder creates an empty module container named and targeted at
// the given output module name (the artifact file stem).
func NewModuleBuilder(name string) *ModuleBuilder {
	return &ModuleBuilder{
		name:     name,
		metadata: make(MetadataBag),
		byName:   make(map[string]*TypeSpec),
	}
}

// Name returns the module name.
func (m *ModuleBuilder) Name() string {
	return m.name
}

// TargetFile returns the artifact file name, <name> plus ModuleSuffix.
func (m *ModuleBuilder) TargetFile() string {
	return m.name + ModuleSuffix
}

// Metadata returns the module's flat metadata bag.
func (m *ModuleBuilder) Metadata() MetadataBag {
	return m.metadata
}

// AddType adds a generated type to the module. Type names must be unique
// within the module.
func (m *ModuleBuilder) AddType(t *TypeSpec) error {
	if t == nil || t.Name == "" {
		return ErrTypeNameRequired
	}
	if _, exists := m.byName[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTypeAlreadyDefined, t.Name)
	}
	m.types = append(m.types, t)
	m.byName[t.Name] = t
	return nil
}

// Type returns the named type, if present.
func (m *ModuleBuilder) Type(name string) (*TypeSpec, bool) {
	t, ok := m.byName[name]
	return t, ok
}

// Types returns all types in insertion order.
func (m *ModuleBuilder) Types() []*TypeSpec {
	return m.types
}

// TypesOfKind returns the module's types of one kind, in insertion order.
func (m *ModuleBuilder) TypesOfKind(kind TypeKind) []*TypeSpec {
	var out []*TypeSpec
	for _, t := range m.types {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// WrapperTypes returns the per-component wrapper types in insertion order.
func (m *ModuleBuilder) WrapperTypes() []*TypeSpec {
	return m.TypesOfKind(TypeKindWrapper)
}

// Render produces the module's synthetic source unit: a main package holding
// the metadata manifest plus every generated type fragment, in insertion
// order. The unit is what the module compiler turns into the binary module.
func (m *ModuleBuilder) Render() ([]byte, error) {
	if len(m.types) == 0 {
		return nil, fmt.Errorf("%w: module %s", ErrModuleEmptySource, m.name)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by serviced component export for module %q. DO NOT EDIT.\n", m.name)
	buf.WriteString("package main\n\n")

	imports := map[string]bool{}
	for _, t := range m.types {
		for _, path := range t.Imports {
			imports[path] = true
		}
	}
	if len(imports) > 0 {
		paths := make([]string, 0, len(imports))
		for path := range imports {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		buf.WriteString("import (\n")
		for _, path := range paths {
			fmt.Fprintf(&buf, "\t%q\n", path)
		}
		buf.WriteString(")\n\n")
	}

	// Metadata manifest, exposed as a well-known symbol for the hosting
	// runtime to inspect. Keys are sorted so the rendered unit is
	// deterministic across exports.
	keys := make([]string, 0, len(m.metadata))
	for k := range m.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("// ModuleMetadata is the exported module's metadata bag.\n")
	buf.WriteString("var ModuleMetadata = map[string]string{\n")
	for _, k := range keys {
		fmt.Fprintf(&buf, "\t%q: %q,\n", k, fmt.Sprintf("%v", m.metadata[k]))
	}
	buf.WriteString("}\n\n")

	for _, t := range m.types {
		buf.WriteString(t.Source)
		if t.Source != "" && t.Source[len(t.Source)-1] != '\n' {
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}

	buf.WriteString("func main() {}\n")
	return buf.Bytes(), nil
}
