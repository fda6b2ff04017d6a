// Package errs carries the closed set of error kinds this compiler can
// surface as a single structured error type: a kind, a message, and an
// optional source position.
package errs

import "github.com/anistark/waspy/token"

// Kind is the closed set of error kinds a compilation can fail with.
type Kind string

const (
	ParseIncomplete         Kind = "ParseIncomplete"
	UnsupportedConstruct    Kind = "UnsupportedConstruct"
	UnsupportedDecorator    Kind = "UnsupportedDecorator"
	TypeAnnotationInvalid   Kind = "TypeAnnotationInvalid"
	UnknownFunction         Kind = "UnknownFunction"
	UnknownVariable         Kind = "UnknownVariable"
	UnknownAttribute        Kind = "UnknownAttribute"
	UnknownMethod           Kind = "UnknownMethod"
	TypeMismatch            Kind = "TypeMismatch"
	UnsupportedIteration    Kind = "UnsupportedIteration"
	UnsupportedOperation    Kind = "UnsupportedOperation"
	StaticDataOverflow      Kind = "StaticDataOverflow"
	EmitFailure             Kind = "EmitFailure"
	ModuleAssemblyFailure   Kind = "ModuleAssemblyFailure"
)

// CompileError is the only error type this module's public API returns.
// Detail holds kind-specific context (a construct name, a type pair,
// ...) already folded into a human-readable string; callers that need
// the kind programmatically should switch on Kind, not parse Detail.
type CompileError struct {
	Kind    Kind
	Message string
	Detail  string
	Pos     token.Position

	// TraceID, when set, ties this error back to the compile run that
	// produced it — the same id threaded through that run's *slog.Logger
	// records (see compiler.Options/irgen's Options). Set by
	// WithTraceID, never by a constructor helper directly, since the
	// converter/compiler building the error doesn't know its own run's
	// trace id until the caller tells it.
	TraceID string
}

func (e *CompileError) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += "(" + e.Detail + ")"
	}
	msg += ": " + e.Message
	if e.Pos.IsValid() {
		msg = e.Pos.String() + ": " + msg
	}
	if e.TraceID != "" {
		msg = "[" + e.TraceID + "] " + msg
	}
	return msg
}

// WithTraceID returns err with TraceID set, for a caller (irgen.Convert,
// compiler.Compile) that knows its own run's id but built err before
// that id was available everywhere a constructor helper is called.
func WithTraceID(err error, traceID string) error {
	ce, ok := err.(*CompileError)
	if !ok || ce == nil {
		return err
	}
	cp := *ce
	cp.TraceID = traceID
	return &cp
}

func New(kind Kind, pos token.Position, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message, Pos: pos}
}

func Newf(kind Kind, pos token.Position, detail string, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message, Detail: detail, Pos: pos}
}

func NewUnsupportedConstruct(pos token.Position, nodeKind string) *CompileError {
	return Newf(UnsupportedConstruct, pos, nodeKind, "construct is not supported by this compiler")
}

func NewUnsupportedDecorator(pos token.Position, name string) *CompileError {
	return Newf(UnsupportedDecorator, pos, name, "decorator is not registered")
}

func NewTypeAnnotationInvalid(pos token.Position, text string) *CompileError {
	return Newf(TypeAnnotationInvalid, pos, text, "type annotation could not be resolved")
}

func NewUnknownFunction(pos token.Position, name string) *CompileError {
	return Newf(UnknownFunction, pos, name, "no function, method, or builtin by this name")
}

func NewUnknownVariable(pos token.Position, name string) *CompileError {
	return Newf(UnknownVariable, pos, name, "identifier is not bound in this scope")
}

func NewUnknownAttribute(pos token.Position, class, name string) *CompileError {
	return Newf(UnknownAttribute, pos, class+"."+name, "class has no such field")
}

func NewUnknownMethod(pos token.Position, class, name string) *CompileError {
	return Newf(UnknownMethod, pos, class+"."+name, "class has no such method")
}

func NewTypeMismatch(pos token.Position, expected, actual, context string) *CompileError {
	return Newf(TypeMismatch, pos, context, "expected "+expected+" but found "+actual)
}

func NewUnsupportedIteration(pos token.Position, typ string) *CompileError {
	return Newf(UnsupportedIteration, pos, typ, "type is not iterable under for-loop lowering")
}

func NewUnsupportedOperation(pos token.Position, op, lhs, rhs string) *CompileError {
	return Newf(UnsupportedOperation, pos, op, "no lowering for "+lhs+" "+op+" "+rhs)
}

func NewStaticDataOverflow(pos token.Position) *CompileError {
	return New(StaticDataOverflow, pos, "interned literals overran the scratch window boundary")
}

func NewEmitFailure(pos token.Position, detail string) *CompileError {
	return Newf(EmitFailure, pos, detail, "instruction emission failed")
}

func NewModuleAssemblyFailure(pos token.Position, detail string) *CompileError {
	return Newf(ModuleAssemblyFailure, pos, detail, "module assembly failed")
}
