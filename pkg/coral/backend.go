package coral

import (
	"context"
	"strings"
)

// TypeID identifies a managed type by its assembly-qualified name. Two
// descriptors denote the same type exactly when their TypeIDs are equal.
type TypeID string

// FullName returns the namespace-qualified type name without the assembly
// part, e.g. "App.Animal" for "App.Animal, App, Version=1.0.0.0".
// Commas inside generic argument brackets are skipped.
func (id TypeID) FullName() string {
	depth := 0
	for i, r := range id {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(string(id[:i]))
			}
		}
	}
	return string(id)
}

// ObjectHandle is an opaque reference to a managed object owned by the host
type ObjectHandle uint64

// TypeRecord is the flat type description a host returns. Text fields are
// host-owned until copied into a ReflectionType.
type TypeRecord struct {
	FullName              string `json:"fullName"`
	Name                  string `json:"name"`
	Namespace             string `json:"namespace"`
	BaseTypeName          string `json:"baseTypeName,omitempty"`
	AssemblyQualifiedName string `json:"assemblyQualifiedName"`
}

// ID returns the record's type identity
func (r TypeRecord) ID() TypeID {
	return TypeID(r.AssemblyQualifiedName)
}

// FieldRecord is one entry of a field enumeration
type FieldRecord struct {
	Name       string         `json:"name"`
	Type       TypeID         `json:"type"`
	Visibility TypeVisibility `json:"visibility"`
	Modifiers  Modifiers      `json:"modifiers"`
}

// MethodRecord is one entry of a method enumeration
type MethodRecord struct {
	Name       string         `json:"name"`
	ReturnType TypeID         `json:"returnType"`
	Parameters []TypeID       `json:"parameters"`
	Visibility TypeVisibility `json:"visibility"`
	Modifiers  Modifiers      `json:"modifiers"`
}

// Backend is the call interface into the hosted runtime. Implementations
// report missing metadata with an error wrapping ErrUnresolvedType and
// transport or lifecycle failures with one wrapping ErrHostUnavailable.
type Backend interface {
	// ResolveType looks a type up by full name or assembly-qualified name
	ResolveType(ctx context.Context, name string) (*TypeRecord, error)

	// ResolveObjectType returns the runtime type of a managed object
	ResolveObjectType(ctx context.Context, handle ObjectHandle) (*TypeRecord, error)

	// ResolveBaseType returns the immediate base type, or nil with a nil
	// error when the type has none
	ResolveBaseType(ctx context.Context, id TypeID) (*TypeRecord, error)

	// EnumerateFields returns the declared fields in declaration order
	EnumerateFields(ctx context.Context, id TypeID) ([]FieldRecord, error)

	// EnumerateMethods returns the declared methods, overloads included, in
	// declaration order
	EnumerateMethods(ctx context.Context, id TypeID) ([]MethodRecord, error)

	// IsAssignable reports whether a value of source can be used where
	// target is expected
	IsAssignable(ctx context.Context, source, target TypeID) (bool, error)

	// Close releases the connection to the host
	Close() error
}

// HostException is a managed exception reported by the host outside of a
// call's result
type HostException struct {
	Message string
}

// ExceptionSource is implemented by backends that can forward host-side
// exceptions
type ExceptionSource interface {
	SetExceptionHandler(handler func(HostException))
}
