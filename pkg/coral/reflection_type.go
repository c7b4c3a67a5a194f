package coral

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// ReflectionType is the native-side descriptor of one managed type.
//
// Identity text is copied when the descriptor is created and never changes.
// Base type, fields, and methods are fetched from the host on first use and
// cached for the descriptor's lifetime; concurrent first use results in a
// single round trip. Assignability is always answered by the host.
//
// Descriptors are created only by a HostInstance and must not be used after
// it is closed.
type ReflectionType struct {
	host *HostInstance
	id   TypeID

	fullName     string
	name         string
	namespace    string
	baseTypeName string

	base    lazy[*ReflectionType]
	fields  lazy[[]ManagedField]
	methods lazy[[]MethodInfo]
}

// lazy is a write-once cache slot. Failed fills leave it empty.
type lazy[T any] struct {
	done atomic.Bool
	mu   sync.Mutex
	val  T
}

func (l *lazy[T]) get(fill func() (T, error)) (T, error) {
	// Fast path: already populated (no locks)
	if l.done.Load() {
		return l.val, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done.Load() {
		return l.val, nil
	}

	v, err := fill()
	if err != nil {
		var zero T
		return zero, err
	}
	l.val = v
	l.done.Store(true)
	return v, nil
}

func newReflectionType(h *HostInstance, rec *TypeRecord) (*ReflectionType, error) {
	rt := &ReflectionType{host: h}

	texts := []struct {
		dst *string
		src string
	}{
		{&rt.fullName, rec.FullName},
		{&rt.name, rec.Name},
		{&rt.namespace, rec.Namespace},
		{&rt.baseTypeName, rec.BaseTypeName},
	}
	for _, t := range texts {
		s, err := h.copyText(t.src)
		if err != nil {
			return nil, err
		}
		*t.dst = s
	}

	aqn, err := h.copyText(rec.AssemblyQualifiedName)
	if err != nil {
		return nil, err
	}
	rt.id = TypeID(aqn)

	return rt, nil
}

// ID returns the type identity (the assembly-qualified name)
func (t *ReflectionType) ID() TypeID { return t.id }

// FullName returns the namespace-qualified name, e.g. "App.Animal"
func (t *ReflectionType) FullName() string { return t.fullName }

// Name returns the simple name, e.g. "Animal"
func (t *ReflectionType) Name() string { return t.name }

// Namespace returns the namespace, empty for the global namespace
func (t *ReflectionType) Namespace() string { return t.namespace }

// BaseTypeName returns the full name of the base type, empty when there is none
func (t *ReflectionType) BaseTypeName() string { return t.baseTypeName }

// AssemblyQualifiedName returns the name including the assembly
func (t *ReflectionType) AssemblyQualifiedName() string { return string(t.id) }

// String implements fmt.Stringer
func (t *ReflectionType) String() string { return t.fullName }

// Equal reports whether t and other denote the same managed type
func (t *ReflectionType) Equal(other *ReflectionType) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id
}

// GetBaseType returns the immediate base type. A nil descriptor with a nil
// error means the type has no base (the root object type, interfaces).
func (t *ReflectionType) GetBaseType(ctx context.Context) (*ReflectionType, error) {
	if err := t.host.alive("get base type", t.fullName); err != nil {
		return nil, err
	}

	return t.base.get(func() (*ReflectionType, error) {
		t.host.trace("resolve base type", t.fullName)
		rec, err := t.host.backend.ResolveBaseType(ctx, t.id)
		if err != nil {
			return nil, classify("get base type", t.fullName, err)
		}
		if rec == nil {
			return nil, nil
		}
		base, err := t.host.materialize(rec)
		if err != nil {
			return nil, classify("get base type", t.fullName, err)
		}
		return base, nil
	})
}

// GetFields returns the declared fields in declaration order. Each call
// returns a fresh copy of the cached list.
func (t *ReflectionType) GetFields(ctx context.Context) ([]ManagedField, error) {
	if err := t.host.alive("get fields", t.fullName); err != nil {
		return nil, err
	}

	fields, err := t.fields.get(func() ([]ManagedField, error) {
		t.host.trace("enumerate fields", t.fullName)
		recs, err := t.host.backend.EnumerateFields(ctx, t.id)
		if err != nil {
			return nil, classify("get fields", t.fullName, err)
		}

		fields := make([]ManagedField, 0, len(recs))
		for _, rec := range recs {
			f, err := t.field(rec)
			if err != nil {
				return nil, classify("get fields", t.fullName, err)
			}
			fields = append(fields, f)
		}
		return slices.Clip(fields), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(fields), nil
}

// GetMethods returns the declared methods in declaration order, overloads
// as separate entries. Each call returns a fresh copy of the cached list.
func (t *ReflectionType) GetMethods(ctx context.Context) ([]MethodInfo, error) {
	if err := t.host.alive("get methods", t.fullName); err != nil {
		return nil, err
	}

	methods, err := t.methods.get(func() ([]MethodInfo, error) {
		t.host.trace("enumerate methods", t.fullName)
		recs, err := t.host.backend.EnumerateMethods(ctx, t.id)
		if err != nil {
			return nil, classify("get methods", t.fullName, err)
		}

		methods := make([]MethodInfo, 0, len(recs))
		for _, rec := range recs {
			m, err := t.method(rec)
			if err != nil {
				return nil, classify("get methods", t.fullName, err)
			}
			methods = append(methods, m)
		}
		return slices.Clip(methods), nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]MethodInfo, len(methods))
	for i, m := range methods {
		m.Parameters = slices.Clone(m.Parameters)
		out[i] = m
	}
	return out, nil
}

// IsAssignableTo asks the host whether a value of t can be used where other
// is expected. The answer is never cached here.
func (t *ReflectionType) IsAssignableTo(ctx context.Context, other *ReflectionType) (bool, error) {
	return t.assignable(ctx, "is assignable to", t, other)
}

// IsAssignableFrom asks the host whether a value of other can be used where
// t is expected. The answer is never cached here.
func (t *ReflectionType) IsAssignableFrom(ctx context.Context, other *ReflectionType) (bool, error) {
	return t.assignable(ctx, "is assignable from", other, t)
}

func (t *ReflectionType) assignable(ctx context.Context, op string, source, target *ReflectionType) (bool, error) {
	if err := t.host.alive(op, t.fullName); err != nil {
		return false, err
	}
	if source == nil || target == nil {
		return false, &TypeError{Op: op, Type: t.fullName, Err: fmt.Errorf("%w: nil descriptor", ErrUnresolvedType)}
	}

	t.host.trace(op, t.fullName)
	ok, err := t.host.backend.IsAssignable(ctx, source.id, target.id)
	if err != nil {
		return false, classify(op, t.fullName, err)
	}
	return ok, nil
}

func (t *ReflectionType) field(rec FieldRecord) (ManagedField, error) {
	name, err := t.host.copyText(rec.Name)
	if err != nil {
		return ManagedField{}, err
	}
	typ, err := t.host.copyText(string(rec.Type))
	if err != nil {
		return ManagedField{}, err
	}
	return ManagedField{
		Name:          name,
		DeclaringType: t.id,
		Type:          TypeID(typ),
		Visibility:    rec.Visibility,
		Modifiers:     rec.Modifiers,
	}, nil
}

func (t *ReflectionType) method(rec MethodRecord) (MethodInfo, error) {
	name, err := t.host.copyText(rec.Name)
	if err != nil {
		return MethodInfo{}, err
	}
	ret, err := t.host.copyText(string(rec.ReturnType))
	if err != nil {
		return MethodInfo{}, err
	}
	params := make([]TypeID, len(rec.Parameters))
	for i, p := range rec.Parameters {
		s, err := t.host.copyText(string(p))
		if err != nil {
			return MethodInfo{}, err
		}
		params[i] = TypeID(s)
	}
	return MethodInfo{
		Name:          name,
		DeclaringType: t.id,
		ReturnType:    TypeID(ret),
		Parameters:    params,
		Visibility:    rec.Visibility,
		Modifiers:     rec.Modifiers,
	}, nil
}
