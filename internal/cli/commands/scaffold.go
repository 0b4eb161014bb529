package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed all:scaffold
var scaffoldFS embed.FS

// copyScaffold writes an embedded project layout into targetDir and returns
// the files it wrote. Existing files are kept unless force is set.
func copyScaffold(name, targetDir string, force bool) ([]string, error) {
	root := path.Join("scaffold", name)
	var written []string

	err := fs.WalkDir(scaffoldFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := p[len(root):]
		if rel == "" {
			return nil
		}
		rel = renameDotfile(rel[1:])
		target := filepath.Join(targetDir, filepath.FromSlash(rel))

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}

		content, err := scaffoldFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	})
	return written, err
}

// renameDotfile maps embedded names to dotfiles, which embed would skip.
func renameDotfile(rel string) string {
	dir, base := path.Split(rel)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return rel
}
