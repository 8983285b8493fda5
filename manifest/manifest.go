package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/errors"
)

// FileName is the manifest file looked up in a package directory
const FileName = "movewasm.toml"

// Manifest describes one package: its definitions, the public functions
// whose codecs are generated, and the build options.
type Manifest struct {
	Package   Package        `toml:"package"`
	Build     Build          `toml:"build"`
	Structs   []StructDecl   `toml:"struct"`
	Enums     []EnumDecl     `toml:"enum"`
	Errors    []StructDecl   `toml:"error"`
	Events    []EventDecl    `toml:"event"`
	Functions []FunctionDecl `toml:"function"`

	// Path is the file the manifest was loaded from (set at load time).
	Path string `toml:"-"`
}

// Package names the module the definitions belong to
type Package struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
	// Module defaults to Name.
	Module string `toml:"module"`
}

// Build holds code generation options
type Build struct {
	HostModule      string `toml:"host-module"`
	MemoryPages     uint32 `toml:"memory-pages"`
	MaxMemoryPages  uint32 `toml:"max-memory-pages"`
	ObjectsSlot     uint64 `toml:"objects-slot"`
	ExportAllocator *bool  `toml:"export-allocator"`
	Output          string `toml:"output"`
}

// FieldDecl is a named field with a type expression
type FieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// StructDecl declares a struct or an error
type StructDecl struct {
	Name       string      `toml:"name"`
	Abilities  []string    `toml:"abilities"`
	TypeParams int         `toml:"type-params"`
	Fields     []FieldDecl `toml:"fields"`
}

// EventDecl declares an event; the first Indexed fields become topics
type EventDecl struct {
	Name    string      `toml:"name"`
	Indexed int         `toml:"indexed"`
	Fields  []FieldDecl `toml:"fields"`
}

// VariantDecl is one enum variant
type VariantDecl struct {
	Name   string      `toml:"name"`
	Fields []FieldDecl `toml:"fields"`
}

// EnumDecl declares an enum. Variants lists field-less variants by name;
// Variant lists variants that may carry fields. Both may be used.
type EnumDecl struct {
	Name       string        `toml:"name"`
	Abilities  []string      `toml:"abilities"`
	TypeParams int           `toml:"type-params"`
	Variants   []string      `toml:"variants"`
	Variant    []VariantDecl `toml:"variant"`
}

// FunctionDecl declares a public function by its concrete signature
type FunctionDecl struct {
	Name    string   `toml:"name"`
	Params  []string `toml:"params"`
	Results []string `toml:"results"`
}

// Load reads and validates a manifest. path may name the file or the
// directory holding movewasm.toml.
func Load(path string) (*Manifest, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindNotFound, err, "cannot read "+path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.WithPath(err, path)
	}
	m.Path = path
	if m.Build.Output == "" {
		m.Build.Output = strings.TrimSuffix(path, filepath.Ext(path)) + ".wasm"
	}
	return m, nil
}

// Parse decodes a manifest from TOML, rejecting unknown keys, then validates
// it and fills in defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidInput, err, "parse error")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.PhaseManifest, errors.KindInvalidInput).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}

	if m.Package.Address == "" {
		m.Package.Address = "0x0"
	}
	if m.Package.Module == "" {
		m.Package.Module = m.Package.Name
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Options converts the build section to generation options
func (m *Manifest) Options() builtins.Options {
	opts := builtins.DefaultOptions()
	if m.Build.HostModule != "" {
		opts.HostModule = m.Build.HostModule
	}
	if m.Build.MemoryPages != 0 {
		opts.MemoryPages = m.Build.MemoryPages
	}
	opts.MaxMemoryPages = m.Build.MaxMemoryPages
	opts.ObjectsSlot = m.Build.ObjectsSlot
	if m.Build.ExportAllocator != nil {
		opts.ExportAllocator = *m.Build.ExportAllocator
	}
	return opts
}

func invalid(path, format string, args ...any) error {
	return errors.New(errors.PhaseManifest, errors.KindInvalidInput).
		Path(path).
		Detail(format, args...).
		Build()
}

func (m *Manifest) validate() error {
	if m.Package.Name == "" {
		return invalid("package", "name is required")
	}
	if m.Build.MaxMemoryPages != 0 && m.Build.MaxMemoryPages < m.Build.MemoryPages {
		return invalid("build", "max-memory-pages %d is below memory-pages %d", m.Build.MaxMemoryPages, m.Build.MemoryPages)
	}

	// structs, enums, errors and events share one namespace
	seen := make(map[string]string)
	claim := func(kind, name string) error {
		if name == "" {
			return invalid(kind, "name is required")
		}
		if prev, ok := seen[name]; ok {
			return errors.New(errors.PhaseManifest, errors.KindDuplicate).
				Path(kind, name).
				Detail("already declared as %s", prev).
				Build()
		}
		seen[name] = kind
		return nil
	}
	fields := func(kind, owner string, fs []FieldDecl) error {
		names := make(map[string]bool, len(fs))
		for _, f := range fs {
			if f.Name == "" || f.Type == "" {
				return invalid(kind, "%s: fields need a name and a type", owner)
			}
			if names[f.Name] {
				return invalid(kind, "%s: duplicate field %q", owner, f.Name)
			}
			names[f.Name] = true
		}
		return nil
	}

	for _, s := range m.Structs {
		if err := claim("struct", s.Name); err != nil {
			return err
		}
		if s.TypeParams < 0 {
			return invalid("struct", "%s: negative type-params", s.Name)
		}
		if err := fields("struct", s.Name, s.Fields); err != nil {
			return err
		}
	}
	for _, e := range m.Enums {
		if err := claim("enum", e.Name); err != nil {
			return err
		}
		if e.TypeParams < 0 {
			return invalid("enum", "%s: negative type-params", e.Name)
		}
		if len(e.Variants)+len(e.Variant) == 0 {
			return invalid("enum", "%s: no variants", e.Name)
		}
		for _, v := range e.Variant {
			if err := fields("enum", e.Name+"::"+v.Name, v.Fields); err != nil {
				return err
			}
		}
	}
	for _, e := range m.Errors {
		if err := claim("error", e.Name); err != nil {
			return err
		}
		if e.TypeParams != 0 {
			return invalid("error", "%s: errors cannot be generic", e.Name)
		}
		if err := fields("error", e.Name, e.Fields); err != nil {
			return err
		}
	}
	for _, e := range m.Events {
		if err := claim("event", e.Name); err != nil {
			return err
		}
		if e.Indexed < 0 || e.Indexed > 3 || e.Indexed > len(e.Fields) {
			return invalid("event", "%s: indexed must be between 0 and min(3, fields), got %d", e.Name, e.Indexed)
		}
		if err := fields("event", e.Name, e.Fields); err != nil {
			return err
		}
	}

	funcs := make(map[string]bool, len(m.Functions))
	for _, fn := range m.Functions {
		if fn.Name == "" {
			return invalid("function", "name is required")
		}
		if funcs[fn.Name] {
			return errors.New(errors.PhaseManifest, errors.KindDuplicate).
				Path("function", fn.Name).
				Detail("function declared twice").
				Build()
		}
		funcs[fn.Name] = true
	}
	return nil
}
