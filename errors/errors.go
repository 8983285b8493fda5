package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which generator raised the error
type Phase string

const (
	PhaseTypes    Phase = "types"    // definition tables and substitution
	PhaseClassify Phase = "classify" // static/dynamic classification
	PhaseSelector Phase = "selector" // signature and selector derivation
	PhasePack     Phase = "pack"     // packing code generation
	PhaseUnpack   Phase = "unpack"   // unpacking code generation
	PhaseStorage  Phase = "storage"  // storage layout and codec generation
	PhaseCache    Phase = "cache"    // instantiation cache
	PhaseCodegen  Phase = "codegen"  // module assembly
	PhaseManifest Phase = "manifest" // manifest loading
	PhaseHost     Phase = "host"     // host simulator
)

// Kind categorizes the error
type Kind string

const (
	KindFoundTypeParameter   Kind = "found_type_parameter"
	KindFoundSigner          Kind = "found_signer"
	KindFoundReference       Kind = "found_reference"
	KindRefInsideRef         Kind = "ref_inside_ref"
	KindEnumNotSimple        Kind = "enum_not_simple"
	KindMissingIdentity      Kind = "missing_identity"
	KindDynamicStorageField  Kind = "dynamic_storage_field"
	KindInvalidFrameworkType Kind = "invalid_framework_type"
	KindNotFound             Kind = "not_found"
	KindDuplicate            Kind = "duplicate"
	KindHashCollision        Kind = "hash_collision"
	KindInvalidInput         Kind = "invalid_input"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindOverflow             Kind = "overflow"
	KindUnsupported          Kind = "unsupported"
	KindInternal             Kind = "internal"
	KindInstantiation        Kind = "instantiation"
)

// Error is the structured error type used throughout movewasm
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return (t.Phase == "" || e.Phase == t.Phase) && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the offending type name
func (b *Builder) Type(name string) *Builder {
	b.err.Type = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinel returns a matcher for errors.Is that ignores the phase.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Convenience constructors for common error patterns

// TypeParameter reports an unresolved generic slot reaching a size, encode or decode step
func TypeParameter(phase Phase, path []string, index uint16) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFoundTypeParameter,
		Path:   path,
		Type:   fmt.Sprintf("T%d", index),
		Detail: "type parameter must be substituted before code generation",
		Value:  index,
	}
}

// SignerFound reports a signer in a wire or storage position
func SignerFound(phase Phase, path []string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFoundSigner,
		Path:   path,
		Type:   "signer",
		Detail: "signer has no wire representation",
	}
}

// ReferenceFound reports a reference that was not dereferenced before encoding
func ReferenceFound(phase Phase, path []string, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFoundReference,
		Path:   path,
		Type:   typeName,
		Detail: "references must be dereferenced before encoding",
	}
}

// RefInsideRef reports a reference to a reference
func RefInsideRef(phase Phase, path []string, typeName string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindRefInsideRef,
		Path:  path,
		Type:  typeName,
	}
}

// EnumNotSimple reports an enum with fields where only simple enums are allowed
func EnumNotSimple(phase Phase, path []string, enumName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEnumNotSimple,
		Path:   path,
		Type:   enumName,
		Detail: "only enums without variant fields can be encoded",
	}
}

// MissingIdentity reports a persistent object whose first field is not the identity type
func MissingIdentity(phase Phase, structName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMissingIdentity,
		Type:   structName,
		Detail: "first field of a persistent object must be a UID",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Internal reports a generator invariant violation
func Internal(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath returns err with name prepended to its path when err is an *Error.
// Other errors are returned unchanged.
func WithPath(err error, name string) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Path = append([]string{name}, e.Path...)
	return &cp
}
