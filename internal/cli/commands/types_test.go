package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypesCommand(t *testing.T) {
	t.Run("from flag", func(t *testing.T) {
		out, _, err := runCommand(t, "types", "--config", writeConfig(t, ""), "--catalog", zooPath, "--no-color")
		require.NoError(t, err)

		assert.Contains(t, out, "Assembly-qualified name")
		assert.Contains(t, out, "App.Dog, App")
		assert.Contains(t, out, "System.Object, System.Private.CoreLib")

		var dog string
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, "App.Dog ") {
				dog = line
			}
		}
		assert.True(t, strings.HasSuffix(dog, "App.Animal"), "dog row: %q", dog)
	})

	t.Run("from config", func(t *testing.T) {
		out, _, err := runCommand(t, "types", "--config", writeConfig(t, catalogConfig(t)), "--no-color")
		require.NoError(t, err)
		assert.Contains(t, out, "App.Point")
	})

	t.Run("built-ins only", func(t *testing.T) {
		out, _, err := runCommand(t, "types", "--config", writeConfig(t, ""), "--no-color")
		require.NoError(t, err)
		assert.Contains(t, out, "System.String")
		assert.NotContains(t, out, "App.")
	})
}
