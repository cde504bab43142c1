package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.md")
	require.NoError(t, SafeWriteFile(path, []byte("hello")))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, SafeWriteFile(path, []byte("again")))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "again", string(b))
}

func TestPrettyJSON(t *testing.T) {
	b, err := PrettyJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(b))

	_, err = PrettyJSON(func() {})
	assert.Error(t, err)
}

func TestCleanedName(t *testing.T) {
	assert.Equal(t, "togo_clean.csv", CleanedName("togo"))
}
