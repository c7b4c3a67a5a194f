package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Kirdow/Coral/pkg/coral"
)

// Catalog is an in-memory managed type system. It implements coral.Backend
// and is what the development host serves.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry // by full name
	byID    map[coral.TypeID]*entry
	objects map[coral.ObjectHandle]*entry
	closed  bool
}

var _ coral.Backend = (*Catalog)(nil)

// New creates a catalog holding the built-in System types and defs. Defs
// without an assembly are placed in assembly.
func New(assembly string, defs ...TypeDef) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[string]*entry),
		byID:    make(map[coral.TypeID]*entry),
		objects: make(map[coral.ObjectHandle]*entry),
	}
	if err := c.Define(CoreAssembly, builtins()...); err != nil {
		return nil, fmt.Errorf("built-in types: %w", err)
	}
	if err := c.Define(assembly, defs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Define adds types to the catalog. References may point at types in the
// same batch or already defined. Nothing is added if any def is invalid.
func (c *Catalog) Define(assembly string, defs ...TypeDef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := make(map[string]*entry, len(defs))
	for _, def := range defs {
		def = def.withDefaults(assembly)
		if err := def.validate(); err != nil {
			return err
		}
		if def.Assembly == "" {
			return fmt.Errorf("type %s: no assembly", def.Name)
		}
		if _, dup := c.entries[def.Name]; dup {
			return fmt.Errorf("type %s already defined", def.Name)
		}
		if _, dup := batch[def.Name]; dup {
			return fmt.Errorf("type %s defined twice", def.Name)
		}

		ns, name := splitName(def.Name)
		id := coral.TypeID(def.Name + ", " + def.Assembly)
		batch[def.Name] = &entry{
			def: def,
			id:  id,
			record: coral.TypeRecord{
				FullName:              def.Name,
				Name:                  name,
				Namespace:             ns,
				BaseTypeName:          def.Base,
				AssemblyQualifiedName: string(id),
			},
		}
	}

	lookup := func(name string) (*entry, error) {
		if e, ok := batch[name]; ok {
			return e, nil
		}
		if e, ok := c.entries[name]; ok {
			return e, nil
		}
		return nil, fmt.Errorf("unknown type %q", name)
	}

	for _, e := range batch {
		if err := c.link(e, lookup); err != nil {
			return fmt.Errorf("type %s: %w", e.def.Name, err)
		}
	}
	for _, e := range batch {
		if err := checkAcyclic(e); err != nil {
			return err
		}
	}

	for name, e := range batch {
		c.entries[name] = e
		c.byID[e.id] = e
	}
	return nil
}

func (c *Catalog) link(e *entry, lookup func(string) (*entry, error)) error {
	if e.def.Base != "" {
		base, err := lookup(e.def.Base)
		if err != nil {
			return fmt.Errorf("base: %w", err)
		}
		if base.def.Kind == KindInterface {
			return fmt.Errorf("base %s is an interface", base.def.Name)
		}
		e.base = base
	}

	for _, name := range e.def.Interfaces {
		iface, err := lookup(name)
		if err != nil {
			return fmt.Errorf("interface: %w", err)
		}
		if iface.def.Kind != KindInterface {
			return fmt.Errorf("%s is not an interface", name)
		}
		e.interfaces = append(e.interfaces, iface)
	}

	e.fields = make([]coral.FieldRecord, 0, len(e.def.Fields))
	for _, f := range e.def.Fields {
		typ, err := lookup(f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		vis, err := coral.ParseVisibility(f.Visibility)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		mods, err := coral.ParseModifiers(f.Modifiers)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		e.fields = append(e.fields, coral.FieldRecord{Name: f.Name, Type: typ.id, Visibility: vis, Modifiers: mods})
	}

	e.methods = make([]coral.MethodRecord, 0, len(e.def.Methods))
	for _, m := range e.def.Methods {
		returns := m.Returns
		if returns == "" {
			returns = "System.Void"
		}
		ret, err := lookup(returns)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		params := make([]coral.TypeID, 0, len(m.Parameters))
		for _, p := range m.Parameters {
			pt, err := lookup(p)
			if err != nil {
				return fmt.Errorf("method %s: %w", m.Name, err)
			}
			params = append(params, pt.id)
		}
		vis, err := coral.ParseVisibility(m.Visibility)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		mods, err := coral.ParseModifiers(m.Modifiers)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		e.methods = append(e.methods, coral.MethodRecord{
			Name: m.Name, ReturnType: ret.id, Parameters: params, Visibility: vis, Modifiers: mods,
		})
	}
	return nil
}

func checkAcyclic(e *entry) error {
	seen := map[*entry]bool{}
	for cur := e; cur != nil; cur = cur.base {
		if seen[cur] {
			return fmt.Errorf("type %s: base type cycle", e.def.Name)
		}
		seen[cur] = true
	}

	var visit func(*entry, map[*entry]bool) error
	visit = func(i *entry, path map[*entry]bool) error {
		if path[i] {
			return fmt.Errorf("type %s: interface cycle through %s", e.def.Name, i.def.Name)
		}
		path[i] = true
		defer delete(path, i)
		for _, next := range i.interfaces {
			if err := visit(next, path); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(e, map[*entry]bool{})
}

// Bind associates an object handle with the runtime type named typeName
func (c *Catalog) Bind(handle coral.ObjectHandle, typeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.find(typeName)
	if !ok {
		return fmt.Errorf("bind object %d: unknown type %q", handle, typeName)
	}
	if e.def.Kind == KindInterface {
		return fmt.Errorf("bind object %d: %s is an interface", handle, typeName)
	}
	c.objects[handle] = e
	return nil
}

// Names returns the full names of every type, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// find accepts a full name or an assembly-qualified name
func (c *Catalog) find(name string) (*entry, bool) {
	name = strings.TrimSpace(name)
	if e, ok := c.byID[coral.TypeID(name)]; ok {
		return e, true
	}
	if e, ok := c.entries[name]; ok {
		return e, true
	}
	// Tolerate version or culture suffixes on an otherwise known identity
	id := coral.TypeID(name)
	if full := id.FullName(); full != name {
		if e, ok := c.entries[full]; ok && strings.HasPrefix(name, string(e.id)+",") {
			return e, true
		}
	}
	return nil, false
}

func (c *Catalog) enter() error {
	if c.closed {
		return fmt.Errorf("%w: catalog closed", coral.ErrHostUnavailable)
	}
	return nil
}

func unresolved(name string) error {
	return fmt.Errorf("%w: %s", coral.ErrUnresolvedType, name)
}

func (c *Catalog) resolveID(id coral.TypeID) (*entry, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	e, ok := c.byID[id]
	if !ok {
		return nil, unresolved(string(id))
	}
	return e, nil
}

// ResolveType implements coral.Backend
func (c *Catalog) ResolveType(ctx context.Context, name string) (*coral.TypeRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.enter(); err != nil {
		return nil, err
	}
	e, ok := c.find(name)
	if !ok {
		return nil, unresolved(name)
	}
	rec := e.record
	return &rec, nil
}

// ResolveObjectType implements coral.Backend
func (c *Catalog) ResolveObjectType(ctx context.Context, handle coral.ObjectHandle) (*coral.TypeRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.enter(); err != nil {
		return nil, err
	}
	e, ok := c.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: no object %d", coral.ErrUnresolvedType, handle)
	}
	rec := e.record
	return &rec, nil
}

// ResolveBaseType implements coral.Backend
func (c *Catalog) ResolveBaseType(ctx context.Context, id coral.TypeID) (*coral.TypeRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, err := c.resolveID(id)
	if err != nil {
		return nil, err
	}
	if e.base == nil {
		return nil, nil
	}
	rec := e.base.record
	return &rec, nil
}

// EnumerateFields implements coral.Backend
func (c *Catalog) EnumerateFields(ctx context.Context, id coral.TypeID) ([]coral.FieldRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, err := c.resolveID(id)
	if err != nil {
		return nil, err
	}
	return append([]coral.FieldRecord{}, e.fields...), nil
}

// EnumerateMethods implements coral.Backend
func (c *Catalog) EnumerateMethods(ctx context.Context, id coral.TypeID) ([]coral.MethodRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, err := c.resolveID(id)
	if err != nil {
		return nil, err
	}
	out := make([]coral.MethodRecord, len(e.methods))
	for i, m := range e.methods {
		m.Parameters = append([]coral.TypeID{}, m.Parameters...)
		out[i] = m
	}
	return out, nil
}

// IsAssignable implements coral.Backend. A value of source is assignable to
// target when target is source itself, one of its base types, an interface
// it implements directly or through inheritance, or System.Object.
func (c *Catalog) IsAssignable(ctx context.Context, source, target coral.TypeID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	src, err := c.resolveID(source)
	if err != nil {
		return false, err
	}
	dst, err := c.resolveID(target)
	if err != nil {
		return false, err
	}

	if dst.def.Name == objectType {
		return true, nil
	}
	for cur := src; cur != nil; cur = cur.base {
		if cur == dst {
			return true, nil
		}
		if dst.def.Kind == KindInterface && implements(cur, dst) {
			return true, nil
		}
	}
	return false, nil
}

func implements(e, iface *entry) bool {
	for _, i := range e.interfaces {
		if i == iface || implements(i, iface) {
			return true
		}
	}
	return false
}

// Close implements coral.Backend. Calls after Close report the host as
// unavailable.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
