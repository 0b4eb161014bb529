package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewFilesystemStore(root)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	tmpl := FromDataflow(sampleFlow(), "0.1.0")
	require.NoError(t, store.Write(ctx, tmpl, "people", "2"))
	require.NoError(t, store.Write(ctx, tmpl, "people", "1"))
	require.NoError(t, store.Write(ctx, tmpl, "orders", "1"))

	assert.FileExists(t, filepath.Join(root, "templates", "people", "version=1", "template.json"))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "people"}, names)

	versions, err := store.ListVersions(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, versions)

	versions, err = store.ListVersions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, versions)

	got, err := store.Read(ctx, "people", "2")
	require.NoError(t, err)
	assert.Equal(t, tmpl, got)
}

func TestFilesystemStore_WriteExistingVersion(t *testing.T) {
	ctx := context.Background()
	store := NewFilesystemStore(t.TempDir())
	tmpl := FromDataflow(sampleFlow(), "0.1.0")

	require.NoError(t, store.Write(ctx, tmpl, "people", "1"))
	err := store.Write(ctx, &Template{}, "people", "1")

	var exists *core.TemplateAlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "people", exists.Name)
	assert.Equal(t, "1", exists.Version)

	got, err := store.Read(ctx, "people", "1")
	require.NoError(t, err)
	assert.Equal(t, tmpl, got)
}

func TestFilesystemStore_ReadMissing(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())

	_, err := store.Read(context.Background(), "people", "9")

	var notFound *core.TemplateNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestFilesystemStore_IgnoresStrayEntries(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewFilesystemStore(root)
	require.NoError(t, store.Write(ctx, &Template{}, "people", "1"))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates", "people", "drafts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", "README"), []byte("x"), 0o600))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, names)

	versions, err := store.ListVersions(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, versions)
}

func TestFilesystemStore_RejectsPathNames(t *testing.T) {
	ctx := context.Background()
	store := NewFilesystemStore(t.TempDir())

	tests := []struct {
		name    string
		tmpl    string
		version string
	}{
		{"empty name", "", "1"},
		{"parent dir", "..", "1"},
		{"slash in name", "a/b", "1"},
		{"slash in version", "a", "1/2"},
		{"empty version", "a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.Write(ctx, &Template{}, tt.tmpl, tt.version))
		})
	}
}
