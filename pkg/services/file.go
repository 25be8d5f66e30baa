package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const contentExt = ".md"

// SafeJoin joins name onto root, returning "" when name would escape it.
func SafeJoin(root, name string) string {
	cleanName := filepath.Clean(name)
	if cleanName == "." || filepath.IsAbs(cleanName) || strings.Contains(cleanName, "..") {
		return ""
	}
	return filepath.Join(root, cleanName)
}

type contentFile struct {
	Path    string
	Raw     string
	ModTime time.Time
}

// readContentFiles returns every *.md file directly inside dir, in name
// order. A missing directory has no files.
func readContentFiles(dir string) ([]contentFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var files []contentFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), contentExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, contentFile{Path: path, Raw: string(raw), ModTime: info.ModTime()})
	}
	return files, nil
}

func writeContentFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
