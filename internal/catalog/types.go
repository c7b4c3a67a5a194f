package catalog

import (
	"fmt"
	"strings"

	"github.com/Kirdow/Coral/pkg/coral"
)

// Kind classifies a managed type
type Kind string

const (
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindStruct    Kind = "struct"
)

// CoreAssembly is the assembly the built-in System types belong to
const CoreAssembly = "System.Private.CoreLib"

const (
	objectType    = "System.Object"
	valueTypeType = "System.ValueType"
)

// TypeDef declares one managed type. Type references (Base, Interfaces,
// member types) use full names.
type TypeDef struct {
	Name       string      `yaml:"name"`
	Assembly   string      `yaml:"assembly,omitempty"`
	Kind       Kind        `yaml:"kind,omitempty"`
	Base       string      `yaml:"base,omitempty"`
	Interfaces []string    `yaml:"interfaces,omitempty"`
	Fields     []FieldDef  `yaml:"fields,omitempty"`
	Methods    []MethodDef `yaml:"methods,omitempty"`
}

// FieldDef declares a field
type FieldDef struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Visibility string   `yaml:"visibility,omitempty"`
	Modifiers  []string `yaml:"modifiers,omitempty"`
}

// MethodDef declares a method. Overloads are separate entries.
type MethodDef struct {
	Name       string   `yaml:"name"`
	Returns    string   `yaml:"returns,omitempty"`
	Parameters []string `yaml:"parameters,omitempty"`
	Visibility string   `yaml:"visibility,omitempty"`
	Modifiers  []string `yaml:"modifiers,omitempty"`
}

// entry is a validated, resolved TypeDef
type entry struct {
	def        TypeDef
	id         coral.TypeID
	record     coral.TypeRecord
	base       *entry
	interfaces []*entry
	fields     []coral.FieldRecord
	methods    []coral.MethodRecord
}

func splitName(full string) (namespace, name string) {
	if i := strings.LastIndex(full, "."); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

func (d TypeDef) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("type without name")
	}
	switch d.Kind {
	case KindClass, KindInterface, KindStruct:
	default:
		return fmt.Errorf("type %s: unknown kind %q", d.Name, d.Kind)
	}
	if d.Kind == KindInterface && d.Base != "" {
		return fmt.Errorf("interface %s cannot have a base type", d.Name)
	}
	return nil
}

// withDefaults fills the kind, assembly, and implicit base type
func (d TypeDef) withDefaults(assembly string) TypeDef {
	if d.Kind == "" {
		d.Kind = KindClass
	}
	if d.Assembly == "" {
		d.Assembly = assembly
	}
	if d.Base == "" && d.Name != objectType {
		switch d.Kind {
		case KindClass:
			d.Base = objectType
		case KindStruct:
			d.Base = valueTypeType
		}
	}
	return d
}

// builtins are the System types every catalog starts with
func builtins() []TypeDef {
	return []TypeDef{
		{
			Name: objectType,
			Methods: []MethodDef{
				{Name: "ToString", Returns: "System.String", Modifiers: []string{"virtual"}},
				{Name: "Equals", Returns: "System.Boolean", Parameters: []string{objectType}, Modifiers: []string{"virtual"}},
				{Name: "GetHashCode", Returns: "System.Int32", Modifiers: []string{"virtual"}},
				{Name: "GetType", Returns: "System.Type"},
			},
		},
		{Name: valueTypeType, Kind: KindClass},
		{Name: "System.Type", Kind: KindClass},
		{
			Name: "System.String",
			Fields: []FieldDef{
				{Name: "Empty", Type: "System.String", Modifiers: []string{"static", "readonly"}},
			},
			Methods: []MethodDef{
				{Name: "get_Length", Returns: "System.Int32"},
			},
		},
		{Name: "System.Int32", Kind: KindStruct},
		{Name: "System.Boolean", Kind: KindStruct},
		{Name: "System.Void", Kind: KindStruct},
	}
}
