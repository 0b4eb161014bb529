package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// Store persists versioned templates. Versions are immutable: writing a
// version that already exists fails with *core.TemplateAlreadyExistsError.
type Store interface {
	List(ctx context.Context) ([]string, error)
	ListVersions(ctx context.Context, name string) ([]string, error)
	Read(ctx context.Context, name, version string) (*Template, error)
	Write(ctx context.Context, t *Template, name, version string) error
}

const (
	templatesDir  = "templates"
	templateFile  = "template.json"
	versionPrefix = "version="
)

// FilesystemStore keeps templates under
// <root>/templates/<name>/version=<version>/template.json.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at root.
func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: root}
}

var _ Store = (*FilesystemStore)(nil)

// List returns template names in lexical order.
func (s *FilesystemStore) List(_ context.Context) ([]string, error) {
	return listDirs(filepath.Join(s.root, templatesDir), "")
}

// ListVersions returns the versions of a template in lexical order.
func (s *FilesystemStore) ListVersions(_ context.Context, name string) ([]string, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return listDirs(filepath.Join(s.root, templatesDir, name), versionPrefix)
}

// Read loads one template version.
func (s *FilesystemStore) Read(_ context.Context, name, version string) (*Template, error) {
	if err := checkNameVersion(name, version); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name, version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &core.TemplateNotFoundError{Name: name, Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return Decode(data, FormatJSON)
}

// Write stores t as a new version.
func (s *FilesystemStore) Write(_ context.Context, t *Template, name, version string) error {
	if err := checkNameVersion(name, version); err != nil {
		return err
	}
	data, err := Encode(t)
	if err != nil {
		return err
	}

	path := s.path(name, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return &core.TemplateAlreadyExistsError{Name: name, Version: version}
	}
	if err != nil {
		return fmt.Errorf("failed to create template file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write template file: %w", err)
	}
	return f.Close()
}

func (s *FilesystemStore) path(name, version string) string {
	return filepath.Join(s.root, templatesDir, name, versionPrefix+version, templateFile)
}

// listDirs lists subdirectories of dir carrying prefix, with the prefix
// stripped. A missing dir is an empty listing.
func listDirs(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, strings.TrimPrefix(e.Name(), prefix))
	}
	sort.Strings(names)
	return names, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid template name %q", name)
	}
	return nil
}

func checkNameVersion(name, version string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if version == "" || version == "." || version == ".." || strings.ContainsAny(version, `/\`) {
		return fmt.Errorf("invalid template version %q", version)
	}
	return nil
}
