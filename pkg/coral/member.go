package coral

import (
	"fmt"
	"slices"
	"strings"
)

// TypeVisibility is the accessibility of a member as reported by the host
type TypeVisibility int

const (
	VisibilityPublic TypeVisibility = iota
	VisibilityPrivate
	VisibilityProtected
	VisibilityInternal
	VisibilityProtectedInternal
	VisibilityPrivateProtected
)

var visibilityNames = [...]string{
	VisibilityPublic:            "public",
	VisibilityPrivate:           "private",
	VisibilityProtected:         "protected",
	VisibilityInternal:          "internal",
	VisibilityProtectedInternal: "protected internal",
	VisibilityPrivateProtected:  "private protected",
}

// String returns the source-level keyword for the visibility
func (v TypeVisibility) String() string {
	if v >= 0 && int(v) < len(visibilityNames) {
		return visibilityNames[v]
	}
	return fmt.Sprintf("TypeVisibility(%d)", int(v))
}

// ParseVisibility parses a visibility keyword. Both "protected internal" and
// "protected_internal" spellings are accepted.
func ParseVisibility(s string) (TypeVisibility, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", " ")
	if norm == "" {
		return VisibilityPublic, nil
	}
	for i, name := range visibilityNames {
		if name == norm {
			return TypeVisibility(i), nil
		}
	}
	return VisibilityPublic, fmt.Errorf("unknown visibility %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (v TypeVisibility) MarshalText() ([]byte, error) {
	if v < 0 || int(v) >= len(visibilityNames) {
		return nil, fmt.Errorf("invalid visibility %d", int(v))
	}
	return []byte(visibilityNames[v]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *TypeVisibility) UnmarshalText(text []byte) error {
	parsed, err := ParseVisibility(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Modifiers is a set of member modifier flags
type Modifiers uint32

const (
	ModifierStatic Modifiers = 1 << iota
	ModifierAbstract
	ModifierVirtual
	ModifierReadOnly
	ModifierLiteral
)

var modifierNames = []struct {
	flag Modifiers
	name string
}{
	{ModifierStatic, "static"},
	{ModifierAbstract, "abstract"},
	{ModifierVirtual, "virtual"},
	{ModifierReadOnly, "readonly"},
	{ModifierLiteral, "const"},
}

// Has reports whether all flags in f are set
func (m Modifiers) Has(f Modifiers) bool {
	return m&f == f
}

// IsStatic reports whether the member belongs to the type rather than an instance
func (m Modifiers) IsStatic() bool {
	return m.Has(ModifierStatic)
}

// Names returns the keywords for the set flags in a stable order
func (m Modifiers) Names() []string {
	var names []string
	for _, mn := range modifierNames {
		if m.Has(mn.flag) {
			names = append(names, mn.name)
		}
	}
	return names
}

// String returns the flags as space separated keywords
func (m Modifiers) String() string {
	return strings.Join(m.Names(), " ")
}

// ParseModifiers builds a flag set from keywords
func ParseModifiers(names []string) (Modifiers, error) {
	var m Modifiers
	for _, name := range names {
		found := false
		for _, mn := range modifierNames {
			if strings.EqualFold(mn.name, strings.TrimSpace(name)) {
				m |= mn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
	}
	return m, nil
}

// ManagedField describes one field declared by a managed type
type ManagedField struct {
	Name          string
	DeclaringType TypeID
	Type          TypeID
	Visibility    TypeVisibility
	Modifiers     Modifiers
}

// Equal reports whether f and other describe the same field
func (f ManagedField) Equal(other ManagedField) bool {
	return f == other
}

// MethodInfo describes one method declared by a managed type. Overloads are
// separate values sharing a Name.
type MethodInfo struct {
	Name          string
	DeclaringType TypeID
	ReturnType    TypeID
	Parameters    []TypeID
	Visibility    TypeVisibility
	Modifiers     Modifiers
}

// Equal reports whether m and other describe the same method: same name,
// declaring type, and signature
func (m MethodInfo) Equal(other MethodInfo) bool {
	return m.Name == other.Name &&
		m.DeclaringType == other.DeclaringType &&
		m.ReturnType == other.ReturnType &&
		m.Visibility == other.Visibility &&
		m.Modifiers == other.Modifiers &&
		slices.Equal(m.Parameters, other.Parameters)
}

// Signature renders the method as "Name(Param, ...) Return" using the given
// name function for type identities
func (m MethodInfo) Signature(typeName func(TypeID) string) string {
	if typeName == nil {
		typeName = func(id TypeID) string { return id.FullName() }
	}
	params := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = typeName(p)
	}
	return fmt.Sprintf("%s(%s) %s", m.Name, strings.Join(params, ", "), typeName(m.ReturnType))
}
