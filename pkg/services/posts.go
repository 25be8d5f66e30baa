package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"blog-cms/pkg/markdown"
	"blog-cms/pkg/metrics"
	"blog-cms/pkg/models"
)

const summaryLength = 140

// PostRepository owns the content directory. The directory is the source of
// truth; the cache index is rewritten from a full scan after every mutation.
// It assumes a single writer and takes no locks.
type PostRepository struct {
	root     string
	dir      string
	cache    *CacheIndex
	renderer markdown.Renderer
	recorder metrics.Recorder
	now      func() time.Time
}

type RepositoryOption func(*PostRepository)

func WithRecorder(rec metrics.Recorder) RepositoryOption {
	return func(r *PostRepository) { r.recorder = rec }
}

func WithClock(now func() time.Time) RepositoryOption {
	return func(r *PostRepository) { r.now = now }
}

// NewPostRepository serves posts from dir. Source paths are reported
// relative to root.
func NewPostRepository(root, dir string, cache *CacheIndex, renderer markdown.Renderer, opts ...RepositoryOption) *PostRepository {
	r := &PostRepository{
		root:     root,
		dir:      dir,
		cache:    cache,
		renderer: renderer,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PostRepository) Dir() string {
	return r.dir
}

// scannedPost pairs a post with the file it was parsed from.
type scannedPost struct {
	post models.Post
	path string
}

// ListAll parses every content file and returns the live posts, most recent
// first. Files without a title, or whose slug is already taken by an earlier
// file, are skipped with a warning.
func (r *PostRepository) ListAll(ctx context.Context) ([]models.Post, error) {
	start := time.Now()
	scanned, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(scanned))
	for _, sp := range scanned {
		posts = append(posts, sp.post)
	}
	SortPosts(posts)
	r.recorder.ObserveScanDuration(time.Since(start))
	r.recorder.SetPostsTotal(len(posts))
	return posts, nil
}

func (r *PostRepository) scan(ctx context.Context) ([]scannedPost, error) {
	files, err := readContentFiles(r.dir)
	if err != nil {
		return nil, err
	}

	scanned := make([]scannedPost, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(file.Path)

		post, ok, err := r.buildPost(file)
		if err != nil {
			return nil, err
		}
		if !ok {
			slog.Warn("Skipping content file without a title", "file", name)
			r.recorder.IncSkippedFile("missing_title")
			continue
		}
		if post.Slug == "" {
			slog.Warn("Skipping content file with an empty slug", "file", name, "title", post.Title)
			r.recorder.IncSkippedFile("empty_slug")
			continue
		}
		if owner, dup := seen[post.Slug]; dup {
			slog.Warn("Skipping content file with a duplicate slug", "file", name, "slug", post.Slug, "owner", owner)
			r.recorder.IncSkippedFile("duplicate_slug")
			continue
		}
		seen[post.Slug] = name
		scanned = append(scanned, scannedPost{post: post, path: file.Path})
	}
	return scanned, nil
}

func (r *PostRepository) buildPost(file contentFile) (models.Post, bool, error) {
	fm, body := ParseFrontmatter(file.Raw)
	title := fm.String("title")
	if title == "" {
		return models.Post{}, false, nil
	}

	slugSource := fm.String("slug")
	if slugSource == "" {
		slugSource = title
	}

	publishedAt := fm.String("date")
	if publishedAt == "" {
		publishedAt = file.ModTime.UTC().Format(time.RFC3339)
	}

	summary := fm.String("summary")
	if summary == "" {
		summary = Excerpt(body, summaryLength)
	}

	html, err := r.renderer.Render(body)
	if err != nil {
		return models.Post{}, false, fmt.Errorf("render %s: %w", filepath.Base(file.Path), err)
	}

	sourcePath, err := filepath.Rel(r.root, file.Path)
	if err != nil {
		sourcePath = file.Path
	}

	return models.Post{
		Title:        title,
		Slug:         Slugify(slugSource),
		PublishedAt:  publishedAt,
		Summary:      summary,
		Tags:         fm.List("tags"),
		HeroImage:    fm.String("heroImage"),
		CanonicalURL: fm.String("canonicalUrl"),
		ReadingTime:  ReadingTime(body),
		ContentHTML:  html,
		SourcePath:   filepath.ToSlash(sourcePath),
	}, true, nil
}

// Create writes a new content file for in and regenerates the cache index.
// It returns the created post together with the full live set. A slug that
// is already live is rejected with ErrSlugConflict.
func (r *PostRepository) Create(ctx context.Context, in models.PostInput) (models.Post, []models.Post, error) {
	post, posts, err := r.create(ctx, in)
	r.recorder.IncOperation("create", resultLabel(err))
	return post, posts, err
}

func (r *PostRepository) create(ctx context.Context, in models.PostInput) (models.Post, []models.Post, error) {
	if err := validateInput(in); err != nil {
		return models.Post{}, nil, err
	}
	slug := Slugify(in.Title)
	if slug == "" {
		return models.Post{}, nil, &ValidationError{Fields: map[string]string{"title": "must contain a letter or digit"}}
	}

	existing, err := r.ListAll(ctx)
	if err != nil {
		return models.Post{}, nil, err
	}
	if slices.ContainsFunc(existing, func(p models.Post) bool { return p.Slug == slug }) {
		return models.Post{}, nil, fmt.Errorf("%w: %s", ErrSlugConflict, slug)
	}
	path := filepath.Join(r.dir, slug+contentExt)
	if _, err := os.Stat(path); err == nil {
		return models.Post{}, nil, fmt.Errorf("%w: %s", ErrSlugConflict, slug)
	}

	if in.Date == "" {
		in.Date = r.now().Format(time.DateOnly)
	}
	if in.Summary == "" {
		in.Summary = Excerpt(strings.TrimSpace(in.Content), summaryLength)
	}
	if err := writeContentFile(path, EncodeFrontmatter(in)); err != nil {
		return models.Post{}, nil, err
	}
	slog.Info("Created post", "slug", slug, "file", filepath.Base(path))

	posts, err := r.Rebuild(ctx)
	if err != nil {
		return models.Post{}, nil, err
	}
	idx := slices.IndexFunc(posts, func(p models.Post) bool { return p.Slug == slug })
	if idx < 0 {
		return models.Post{}, nil, fmt.Errorf("created post %s missing after rebuild", slug)
	}
	return posts[idx], posts, nil
}

func validateInput(in models.PostInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		fields[field] = ferr.Error()
	}
	return &ValidationError{Fields: fields}
}

// Remove deletes the content file owning slug and regenerates the cache
// index. The input is re-slugified so it can never name a path outside the
// content directory.
func (r *PostRepository) Remove(ctx context.Context, slug string) ([]models.Post, error) {
	posts, err := r.remove(ctx, slug)
	r.recorder.IncOperation("remove", resultLabel(err))
	return posts, err
}

func (r *PostRepository) remove(ctx context.Context, slug string) ([]models.Post, error) {
	safe := Slugify(slug)
	if safe == "" {
		return nil, &ValidationError{Fields: map[string]string{"slug": "cannot be blank"}}
	}

	scanned, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, safe+contentExt)
	if idx := slices.IndexFunc(scanned, func(sp scannedPost) bool { return sp.post.Slug == safe }); idx >= 0 {
		path = scanned[idx].path
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, safe)
		}
		return nil, fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	slog.Info("Removed post", "slug", safe, "file", filepath.Base(path))

	return r.Rebuild(ctx)
}

// Rebuild rescans the content directory and rewrites the cache index.
func (r *PostRepository) Rebuild(ctx context.Context) ([]models.Post, error) {
	posts, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := r.cache.Write(posts); err != nil {
		return nil, err
	}
	r.recorder.ObserveCacheWrite(time.Since(start))
	slog.Debug("Cache index rebuilt", "posts", len(posts), "path", r.cache.Path())
	return posts, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// PublishedTime parses a post date. Unparseable dates yield the zero time.
func PublishedTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SortPosts orders posts by publication date, most recent first. Posts with
// unparseable dates keep their relative order at the end.
func SortPosts(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return PublishedTime(b.PublishedAt).Compare(PublishedTime(a.PublishedAt))
	})
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrValidation):
		return metrics.ResultInvalid
	case errors.Is(err, ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrSlugConflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
