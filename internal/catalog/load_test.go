package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsAssembly(t *testing.T) {
	c, err := Parse([]byte(`
types:
  - name: Game.Player
    fields:
      - {name: Score, type: System.Int32, modifiers: [readonly]}
`))
	require.NoError(t, err)

	rec, err := c.ResolveType(context.Background(), "Game.Player")
	require.NoError(t, err)
	assert.Equal(t, "Game.Player, App", rec.AssemblyQualifiedName)
	assert.Equal(t, "System.Object", rec.BaseTypeName)
}

func TestParsePerTypeAssembly(t *testing.T) {
	c, err := Parse([]byte(`
assembly: Game
types:
  - name: Engine.Entity
    assembly: Engine
  - name: Game.Player
    base: Engine.Entity
`))
	require.NoError(t, err)

	rec, err := c.ResolveType(context.Background(), "Game.Player")
	require.NoError(t, err)
	assert.Equal(t, "Game.Player, Game", rec.AssemblyQualifiedName)

	base, err := c.ResolveBaseType(context.Background(), rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "Engine.Entity, Engine", base.AssemblyQualifiedName)
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Contains(t, c.Names(), "System.Object")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "types: [\n"},
		{"unknown key", "typez: []\n"},
		{"bad reference", "types:\n  - {name: App.A, base: App.B}\n"},
		{"bad object", "objects:\n  1: App.Missing\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.NotContains(t, c.Names(), "App.Dog")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "types.yml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - name: App.Cat\n"), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Contains(t, c.Names(), "App.Cat")
}
