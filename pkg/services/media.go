package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var mediaExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".avif": true,
	".svg":  true,
}

type MediaFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"` // value to use as a post's heroImage
}

// MediaStore keeps uploaded images in a flat directory served under
// publicURL.
type MediaStore struct {
	dir       string
	publicURL string
	now       func() time.Time
}

func NewMediaStore(dir, publicURL string) *MediaStore {
	return &MediaStore{dir: dir, publicURL: publicURL, now: time.Now}
}

func (m *MediaStore) url(name string) string {
	return path.Join("/", m.publicURL, name)
}

func (m *MediaStore) List() ([]MediaFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MediaFile{}, nil
		}
		return nil, err
	}

	files := []MediaFile{}
	for _, entry := range entries {
		if entry.IsDir() || !mediaExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, MediaFile{Name: entry.Name(), Size: info.Size(), URL: m.url(entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Save stores an uploaded image under a sanitized, timestamped name.
func (m *MediaStore) Save(header *multipart.FileHeader) (*MediaFile, error) {
	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !mediaExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, ext)
	}
	name := Slugify(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if name == "" {
		name = "upload"
	}
	filename = fmt.Sprintf("%s_%d%s", name, m.now().Unix(), ext)

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, err
	}
	dst, err := os.Create(filepath.Join(m.dir, filename))
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		return nil, err
	}

	return &MediaFile{Name: filename, Size: size, URL: m.url(filename)}, nil
}

func (m *MediaStore) Delete(name string) error {
	fullPath := SafeJoin(m.dir, name)
	if fullPath == "" || filepath.Dir(fullPath) != filepath.Clean(m.dir) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return nil
}
