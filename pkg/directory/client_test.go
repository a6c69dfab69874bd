package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, snapshot string) *FileClient {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api_mock.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o644))

	c, err := NewFileClient(Options{Path: path})
	require.NoError(t, err)
	return c
}

func TestLookup_Hit(t *testing.T) {
	c := newTestClient(t, `{"P1": {"department": "Finance", "location": "Denver"}}`)

	attrs, err := c.Lookup(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"department": "Finance", "location": "Denver"}, attrs)
}

func TestLookup_MissIsEmptyNotError(t *testing.T) {
	c := newTestClient(t, `{"P1": {"department": "Finance"}}`)

	attrs, err := c.Lookup(context.Background(), "P999")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c := newTestClient(t, `{"P1": {"department": "Finance"}}`)

	first, err := c.Lookup(context.Background(), "P1")
	require.NoError(t, err)
	first["department"] = "mutated"

	// The snapshot itself must not be affected by callers mutating results.
	assert.Equal(t, "Finance", c.data["P1"]["department"])
}

func TestNewFileClient_MissingFile(t *testing.T) {
	_, err := NewFileClient(Options{Path: filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read snapshot")
}

func TestNewFileClient_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileClient(Options{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse snapshot")
}
