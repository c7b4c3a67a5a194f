// Package hostrpc carries the host call interface over JSON-RPC 2.0.
//
// The native side runs a Client, which implements coral.Backend. The managed
// side, or the development host standing in for it, runs a Server that
// adapts any coral.Backend to the wire. Messages are Content-Length framed
// as in the Language Server Protocol.
package hostrpc

import (
	"go.lsp.dev/jsonrpc2"

	"github.com/Kirdow/Coral/pkg/coral"
	"github.com/Kirdow/Coral/pkg/interop"
)

// Wire method names
const (
	MethodResolveType       = "coral/resolveType"
	MethodResolveObjectType = "coral/resolveObjectType"
	MethodResolveBaseType   = "coral/resolveBaseType"
	MethodEnumerateFields   = "coral/enumerateFields"
	MethodEnumerateMethods  = "coral/enumerateMethods"
	MethodIsAssignable      = "coral/isAssignable"

	// MethodException is a host to native notification
	MethodException = "coral/exception"
)

// CodeUnresolvedType is the error code a host answers with when it has no
// metadata for the requested identity
const CodeUnresolvedType jsonrpc2.Code = -32040

type resolveTypeParams struct {
	Name interop.Text `json:"name"`
}

type resolveObjectTypeParams struct {
	Handle coral.ObjectHandle `json:"handle"`
}

type typeParams struct {
	Type interop.Text `json:"type"`
}

type isAssignableParams struct {
	Source interop.Text `json:"source"`
	Target interop.Text `json:"target"`
}

type exceptionParams struct {
	Message interop.Text `json:"message"`
}

type typeRecord struct {
	FullName              interop.Text `json:"fullName"`
	Name                  interop.Text `json:"name"`
	Namespace             interop.Text `json:"namespace"`
	BaseTypeName          interop.Text `json:"baseTypeName"`
	AssemblyQualifiedName interop.Text `json:"assemblyQualifiedName"`
}

type fieldRecord struct {
	Name       interop.Text         `json:"name"`
	Type       interop.Text         `json:"type"`
	Visibility coral.TypeVisibility `json:"visibility"`
	Modifiers  []string             `json:"modifiers,omitempty"`
}

type methodRecord struct {
	Name       interop.Text         `json:"name"`
	ReturnType interop.Text         `json:"returnType"`
	Parameters []interop.Text       `json:"parameters"`
	Visibility coral.TypeVisibility `json:"visibility"`
	Modifiers  []string             `json:"modifiers,omitempty"`
}

// codec converts between backend records and their wire form
type codec struct {
	enc interop.Encoding
}

func (c codec) text(s string) interop.Text {
	return interop.NewText(s, c.enc)
}

func (c codec) id(id coral.TypeID) interop.Text {
	return c.text(string(id))
}

func (c codec) typeRecord(r *coral.TypeRecord) *typeRecord {
	if r == nil {
		return nil
	}
	return &typeRecord{
		FullName:              c.text(r.FullName),
		Name:                  c.text(r.Name),
		Namespace:             c.text(r.Namespace),
		BaseTypeName:          c.text(r.BaseTypeName),
		AssemblyQualifiedName: c.text(r.AssemblyQualifiedName),
	}
}

func (c codec) fields(in []coral.FieldRecord) []fieldRecord {
	out := make([]fieldRecord, len(in))
	for i, f := range in {
		out[i] = fieldRecord{
			Name:       c.text(f.Name),
			Type:       c.id(f.Type),
			Visibility: f.Visibility,
			Modifiers:  f.Modifiers.Names(),
		}
	}
	return out
}

func (c codec) methods(in []coral.MethodRecord) []methodRecord {
	out := make([]methodRecord, len(in))
	for i, m := range in {
		params := make([]interop.Text, len(m.Parameters))
		for j, p := range m.Parameters {
			params[j] = c.id(p)
		}
		out[i] = methodRecord{
			Name:       c.text(m.Name),
			ReturnType: c.id(m.ReturnType),
			Parameters: params,
			Visibility: m.Visibility,
			Modifiers:  m.Modifiers.Names(),
		}
	}
	return out
}

func (r *typeRecord) record() *coral.TypeRecord {
	if r == nil {
		return nil
	}
	return &coral.TypeRecord{
		FullName:              r.FullName.String(),
		Name:                  r.Name.String(),
		Namespace:             r.Namespace.String(),
		BaseTypeName:          r.BaseTypeName.String(),
		AssemblyQualifiedName: r.AssemblyQualifiedName.String(),
	}
}

func (f fieldRecord) record() (coral.FieldRecord, error) {
	mods, err := coral.ParseModifiers(f.Modifiers)
	if err != nil {
		return coral.FieldRecord{}, err
	}
	return coral.FieldRecord{
		Name:       f.Name.String(),
		Type:       coral.TypeID(f.Type.String()),
		Visibility: f.Visibility,
		Modifiers:  mods,
	}, nil
}

func (m methodRecord) record() (coral.MethodRecord, error) {
	mods, err := coral.ParseModifiers(m.Modifiers)
	if err != nil {
		return coral.MethodRecord{}, err
	}
	params := make([]coral.TypeID, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = coral.TypeID(p.String())
	}
	return coral.MethodRecord{
		Name:       m.Name.String(),
		ReturnType: coral.TypeID(m.ReturnType.String()),
		Parameters: params,
		Visibility: m.Visibility,
		Modifiers:  mods,
	}, nil
}
