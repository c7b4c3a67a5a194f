package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Kirdow/Coral/pkg/coral"
)

// TypeViewOptions selects what RenderType prints
type TypeViewOptions struct {
	NoColor bool
	// Members also lists fields and methods
	Members bool
	// Qualified prints member types by assembly-qualified name
	Qualified bool
}

// RenderType prints the identity and base chain of t, and its members when
// requested. Every host round trip goes through t, so failures come back as
// coral errors.
func RenderType(ctx context.Context, w io.Writer, t *coral.ReflectionType, opts TypeViewOptions) error {
	chain, err := baseChain(ctx, t)
	if err != nil {
		return err
	}

	Header(w, t.FullName(), opts.NoColor)
	kv := NewKeyValueTable(w, opts.NoColor)
	kv.AddRow("Name", t.Name())
	kv.AddRow("Namespace", orDash(t.Namespace()))
	kv.AddRow("Assembly", t.AssemblyQualifiedName())
	kv.AddRow("Base", orDash(t.BaseTypeName()))
	if len(chain) > 0 {
		names := make([]string, len(chain))
		for i, b := range chain {
			names[i] = b.FullName()
		}
		kv.AddRow("Chain", strings.Join(names, " → "))
	}
	kv.Render()

	if !opts.Members {
		return nil
	}

	name := func(id coral.TypeID) string {
		if opts.Qualified {
			return string(id)
		}
		return id.FullName()
	}

	fields, err := t.GetFields(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	Header(w, fmt.Sprintf("Fields (%d)", len(fields)), opts.NoColor)
	if len(fields) > 0 {
		ft := NewTable(w, []string{"Name", "Type", "Visibility", "Modifiers"}, &TableOptions{NoColor: opts.NoColor})
		for _, f := range fields {
			ft.AddRow(f.Name, name(f.Type), f.Visibility.String(), orDash(f.Modifiers.String()))
		}
		ft.Render()
	}

	methods, err := t.GetMethods(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	Header(w, fmt.Sprintf("Methods (%d)", len(methods)), opts.NoColor)
	if len(methods) > 0 {
		mt := NewTable(w, []string{"Signature", "Visibility", "Modifiers"}, &TableOptions{NoColor: opts.NoColor})
		for _, m := range methods {
			mt.AddRow(m.Signature(name), m.Visibility.String(), orDash(m.Modifiers.String()))
		}
		mt.Render()
	}
	return nil
}

func baseChain(ctx context.Context, t *coral.ReflectionType) ([]*coral.ReflectionType, error) {
	var chain []*coral.ReflectionType
	seen := map[coral.TypeID]bool{t.ID(): true}
	for cur := t; ; {
		base, err := cur.GetBaseType(ctx)
		if err != nil {
			return nil, err
		}
		// a misbehaving host could report a cycle
		if base == nil || seen[base.ID()] {
			return chain, nil
		}
		seen[base.ID()] = true
		chain = append(chain, base)
		cur = base
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
