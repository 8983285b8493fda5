package cache

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// GenFunc emits the function for one instantiation under the given name
type GenFunc func(name string) (codegen.FuncID, error)

type key struct {
	Kind string      `cbor:"1,keyasint"`
	Args []types.Key `cbor:"2,keyasint,omitempty"`
}

type entry struct {
	id   codegen.FuncID
	name string
	done bool
}

// Cache memoizes generated functions per (kind, type arguments) so every
// distinct instantiation has exactly one body in the module.
// It is not safe for concurrent use.
type Cache struct {
	module  *codegen.Module
	entries map[string]*entry // canonical key -> entry
	names   map[string]string // emitted name -> canonical key
}

// New creates a cache emitting into m
func New(m *codegen.Module) *Cache {
	return &Cache{
		module:  m,
		entries: make(map[string]*entry),
		names:   make(map[string]string),
	}
}

// Module returns the module the cache emits into
func (c *Cache) Module() *codegen.Module {
	return c.module
}

// Len returns the number of generated instantiations
func (c *Cache) Len() int {
	return len(c.entries)
}

func encodeKey(kind string, args []types.Type) (string, error) {
	k := key{Kind: kind}
	if len(args) > 0 {
		k.Args = make([]types.Key, len(args))
		for i, a := range args {
			k.Args[i] = types.KeyOf(a)
		}
	}
	b, err := encMode.Marshal(k)
	if err != nil {
		return "", errors.Wrap(errors.PhaseCache, errors.KindInternal, err, "encode cache key")
	}
	return string(b), nil
}

// Name returns the symbol an instantiation is emitted under: the kind itself
// for helpers without type arguments, otherwise the kind suffixed with the
// 64-bit xxh3 digest of the canonical key.
func Name(kind string, args []types.Type) (string, error) {
	k, err := encodeKey(kind, args)
	if err != nil {
		return "", err
	}
	return symbol(kind, len(args), k), nil
}

func symbol(kind string, nargs int, k string) string {
	if nargs == 0 {
		return kind
	}
	return fmt.Sprintf("%s_%016x", kind, xxh3.HashString(k))
}

// Lookup returns the function of an already generated instantiation
func (c *Cache) Lookup(kind string, args []types.Type) (codegen.FuncID, bool) {
	k, err := encodeKey(kind, args)
	if err != nil {
		return 0, false
	}
	e, ok := c.entries[k]
	if !ok || !e.done {
		return 0, false
	}
	return e.id, true
}

// GetOrCreate returns the function for (kind, args), calling gen exactly once
// per distinct key. gen must register a function under the name it is given.
// Generators may request other instantiations; requesting one that is still
// being generated is reported as recursive.
func (c *Cache) GetOrCreate(kind string, args []types.Type, gen GenFunc) (codegen.FuncID, error) {
	for _, a := range args {
		if !types.IsConcrete(a) {
			return 0, errors.New(errors.PhaseCache, errors.KindFoundTypeParameter).
				Type(a.String()).
				Detail("%s requested with a generic argument", kind).
				Build()
		}
	}

	k, err := encodeKey(kind, args)
	if err != nil {
		return 0, err
	}
	if e, ok := c.entries[k]; ok {
		if !e.done {
			return 0, errors.New(errors.PhaseCache, errors.KindInstantiation).
				Type(typesString(args)).
				Detail("recursive instantiation of %s", e.name).
				Build()
		}
		return e.id, nil
	}

	name := symbol(kind, len(args), k)
	if owner, ok := c.names[name]; ok && owner != k {
		return 0, collision(name, args)
	}
	if _, taken := c.module.FuncByName(name); taken {
		return 0, collision(name, args)
	}

	e := &entry{name: name}
	c.entries[k] = e
	c.names[name] = k

	id, err := gen(name)
	if err != nil {
		delete(c.entries, k)
		delete(c.names, name)
		return 0, err
	}
	if got := c.module.FuncName(id); got != name {
		delete(c.entries, k)
		delete(c.names, name)
		return 0, errors.Internal(errors.PhaseCache, "generator for %s returned %q", name, got)
	}
	e.id = id
	e.done = true

	Logger().Debug("instantiation generated",
		zap.String("kind", kind),
		zap.String("name", name),
		zap.String("types", typesString(args)),
	)
	return id, nil
}

func collision(name string, args []types.Type) error {
	return errors.New(errors.PhaseCache, errors.KindHashCollision).
		Type(typesString(args)).
		Detail("symbol %q is already taken", name).
		Build()
}

func typesString(args []types.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
