package types

import (
	"strconv"
	"strings"

	"github.com/wippyai/movewasm/errors"
)

// ResolveFunc maps a (possibly qualified) definition name and its type
// arguments to a struct or enum type.
type ResolveFunc func(name string, args []Type) (Type, error)

// Parse reads a type expression such as "vector<Pair<u8,address>>",
// "&mut Counter" or "T0". Named types are handed to resolve.
func Parse(s string, resolve ResolveFunc) (Type, error) {
	p := &parser{src: s, resolve: resolve}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

type parser struct {
	resolve ResolveFunc
	src     string
	pos     int
}

func (p *parser) fail(format string, args ...any) error {
	return errors.New(errors.PhaseTypes, errors.KindInvalidInput).
		Type(p.src).
		Detail(format, args...).
		Build()
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseType() (Type, error) {
	if p.consume("&") {
		mutable := false
		p.skipSpace()
		if strings.HasPrefix(p.src[p.pos:], "mut ") {
			p.pos += len("mut ")
			mutable = true
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return Ref{Elem: elem, Mutable: mutable}, nil
	}

	name := p.ident()
	if name == "" {
		return nil, p.fail("expected type at offset %d", p.pos)
	}

	switch name {
	case "bool":
		return Bool{}, nil
	case "u8":
		return U8{}, nil
	case "u16":
		return U16{}, nil
	case "u32":
		return U32{}, nil
	case "u64":
		return U64{}, nil
	case "u128":
		return U128{}, nil
	case "u256":
		return U256{}, nil
	case "address":
		return Address{}, nil
	case "signer":
		return Signer{}, nil
	case "vector":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, p.fail("vector takes one type argument, got %d", len(args))
		}
		return Vector{Elem: args[0]}, nil
	}

	if len(name) > 1 && name[0] == 'T' {
		if idx, err := strconv.ParseUint(name[1:], 10, 16); err == nil {
			return TypeParam{Index: uint16(idx)}, nil
		}
	}

	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if p.resolve == nil {
		return nil, p.fail("unknown type %q", name)
	}
	return p.resolve(name, args)
}

func (p *parser) parseArgs() ([]Type, error) {
	if !p.consume("<") {
		return nil, nil
	}
	var args []Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		if p.consume(">") {
			return args, nil
		}
		if !p.consume(",") {
			return nil, p.fail("expected ',' or '>' at offset %d", p.pos)
		}
	}
}
