package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/refinery/internal/domain"
)

func TestDefaultStore_Valid(t *testing.T) {
	store := DefaultStore()

	assert.NoError(t, store.Validate())
}

func TestStore_ValidateReportsEmptyTemplates(t *testing.T) {
	store := DefaultStore()
	store.Solution = "   "
	store.Critique = ""

	err := store.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTemplateEmpty)
	assert.Contains(t, err.Error(), "solution_template")
	assert.Contains(t, err.Error(), "critique_template")
}

func TestLoadStore_NoDirKeepsDefaults(t *testing.T) {
	store, err := LoadStore("")

	require.NoError(t, err)
	assert.Equal(t, DefaultStore(), store)
}

func TestLoadStore_OverridesPresentFiles(t *testing.T) {
	dir := t.TempDir()
	custom := "Custom solution template: {original_prompt}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, SolutionTemplateFile), []byte(custom+"\n"), 0o644))

	store, err := LoadStore(dir)

	require.NoError(t, err)
	assert.Equal(t, custom, store.Solution)
	// Absent files keep their defaults.
	assert.Equal(t, DefaultStore().Critique, store.Critique)
}

func TestLoadStore_BlankFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CritiqueTemplateFile), []byte("  \n\t\n"), 0o644))

	_, err := LoadStore(dir)

	assert.ErrorIs(t, err, domain.ErrTemplateEmpty)
}
