package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInstructions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instructions.md")
	require.NoError(t, os.WriteFile(path, []byte("\n  You are a helpful voice agent.\n\n"), 0o644))

	assert.Equal(t, "You are a helpful voice agent.", LoadInstructions(path))
}

func TestLoadInstructionsMissingFile(t *testing.T) {
	assert.Empty(t, LoadInstructions(filepath.Join(t.TempDir(), "nope.md")))
	assert.Empty(t, LoadInstructions(""))
}
