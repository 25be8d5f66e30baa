package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"blog-cms/pkg/models"
)

// CacheIndex is the serialized projection of every live post. It is always
// rewritten whole and never edited in place.
type CacheIndex struct {
	path string
}

func NewCacheIndex(path string) *CacheIndex {
	return &CacheIndex{path: path}
}

func (c *CacheIndex) Path() string {
	return c.path
}

func (c *CacheIndex) Write(posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	return nil
}

func (c *CacheIndex) Read() ([]models.Post, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read cache index: %w", err)
	}
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode cache index: %w", err)
	}
	return posts, nil
}
