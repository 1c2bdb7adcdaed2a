package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderDefaults(t *testing.T) {
	l := NewLoader()
	all, err := l.LoadAll("screener", "analyst", "critic", "arbiter")
	require.NoError(t, err)
	assert.Contains(t, all["critic"], "confidence_adjustment")
	assert.Contains(t, all["arbiter"], "endorse")

	_, err = l.Load("trader")
	assert.Error(t, err)
	_, err = l.Load("../etc/passwd")
	assert.Error(t, err)
}

func TestLoaderOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "critic.txt"), []byte("  be harsh  \n"), 0o644))
	l := NewLoader("", dir, dir)
	got, err := l.Load("Critic")
	require.NoError(t, err)
	assert.Equal(t, "be harsh", got)

	got, err = l.Load("screener")
	require.NoError(t, err)
	assert.Contains(t, got, "SCREENER")
}
