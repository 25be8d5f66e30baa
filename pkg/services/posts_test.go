package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog-cms/pkg/markdown"
	"blog-cms/pkg/models"
)

type fixture struct {
	root  string
	dir   string
	cache *CacheIndex
	repo  *PostRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "content", "posts")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	cache := NewCacheIndex(filepath.Join(root, "data", "posts.json"))
	clock := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	repo := NewPostRepository(root, dir, cache, markdown.NewLite(), WithClock(clock))
	return &fixture{root: root, dir: dir, cache: cache, repo: repo}
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func slugs(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}

func TestListAll_ParsesAndSorts(t *testing.T) {
	f := newFixture(t)
	f.write(t, "older.md", "---\ntitle: \"Older Post\"\ndate: \"2023-01-01\"\ntags: go, web\n---\n\nHello **there**.")
	f.write(t, "newer.md", "---\ntitle: Newer Post\ndate: 2024-02-01T08:00:00Z\nsummary: 'Custom summary'\ntags: [\"a\", \"b\"]\nheroImage: /img/x.png\ncanonicalUrl: https://example.com/newer\nslug: custom-slug\n---\n# Heading")
	f.write(t, "notes.txt", "---\ntitle: Ignored\n---\n")
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "nested.md"), 0o755))

	posts, err := f.repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	newer := posts[0]
	assert.Equal(t, "Newer Post", newer.Title)
	assert.Equal(t, "custom-slug", newer.Slug)
	assert.Equal(t, "2024-02-01T08:00:00Z", newer.PublishedAt)
	assert.Equal(t, "Custom summary", newer.Summary)
	assert.Equal(t, []string{"a", "b"}, newer.Tags)
	assert.Equal(t, "/img/x.png", newer.HeroImage)
	assert.Equal(t, "https://example.com/newer", newer.CanonicalURL)
	assert.Equal(t, "<h1>Heading</h1>", newer.ContentHTML)
	assert.Equal(t, "content/posts/newer.md", newer.SourcePath)
	assert.False(t, newer.IsDraft)

	older := posts[1]
	assert.Equal(t, "older-post", older.Slug)
	assert.Equal(t, []string{"go", "web"}, older.Tags)
	assert.Equal(t, "Hello **there**.", older.Summary)
	assert.Equal(t, "<p>Hello <strong>there</strong>.</p>", older.ContentHTML)
	assert.Equal(t, 1, older.ReadingTime)
}

func TestListAll_SkipsUntitledAndDuplicateSlugs(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "---\ntitle: Same Title\ndate: 2024-01-01\n---\nfirst")
	f.write(t, "b.md", "---\ntitle: Same  title!\ndate: 2024-05-01\n---\nsecond")
	f.write(t, "c.md", "no frontmatter at all")
	f.write(t, "d.md", "---\ntitle: \"\"\n---\nempty title")
	f.write(t, "e.md", "---\ntitle: \"!!!\"\n---\nno slug")

	posts, err := f.repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "content/posts/a.md", posts[0].SourcePath)
}

func TestListAll_MissingDateUsesModTime(t *testing.T) {
	f := newFixture(t)
	f.write(t, "x.md", "---\ntitle: X\n---\nbody")
	mtime := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, "x.md"), mtime, mtime))

	posts, err := f.repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "2022-03-04T05:06:07Z", posts[0].PublishedAt)
}

func TestListAll_MissingDirectoryIsEmpty(t *testing.T) {
	root := t.TempDir()
	repo := NewPostRepository(root, filepath.Join(root, "nope"), NewCacheIndex(filepath.Join(root, "posts.json")), markdown.NewLite())

	posts, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestListAll_CanceledContext(t *testing.T) {
	f := newFixture(t)
	f.write(t, "x.md", "---\ntitle: X\n---\nbody")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.repo.ListAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCreate_ThenListAll(t *testing.T) {
	f := newFixture(t)

	post, posts, err := f.repo.Create(context.Background(), models.PostInput{Title: "My Post", Content: "Hello"})
	require.NoError(t, err)

	assert.Equal(t, "my-post", post.Slug)
	assert.Equal(t, "2024-06-01", post.PublishedAt)
	assert.Equal(t, "Hello", post.Summary)
	assert.GreaterOrEqual(t, post.ReadingTime, 1)
	assert.NotEmpty(t, post.ContentHTML)
	assert.Equal(t, []string{}, post.Tags)
	assert.Equal(t, []string{"my-post"}, slugs(posts))
	assert.Equal(t, []string{"my-post.md"}, f.files(t))

	listed, err := f.repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, post, listed[0])

	cached, err := f.cache.Read()
	require.NoError(t, err)
	assert.Equal(t, listed, cached)
}

func TestCreate_KeepsExplicitFields(t *testing.T) {
	f := newFixture(t)
	in := models.PostInput{
		Title:        "Tagged",
		Summary:      "S",
		Tags:         []string{"b", "a", "b"},
		HeroImage:    "/h.png",
		CanonicalURL: "https://example.com/t",
		Content:      "- one\n- two",
		Date:         "2021-12-31",
	}
	post, _, err := f.repo.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "S", post.Summary)
	assert.Equal(t, []string{"b", "a", "b"}, post.Tags)
	assert.Equal(t, "/h.png", post.HeroImage)
	assert.Equal(t, "https://example.com/t", post.CanonicalURL)
	assert.Equal(t, "2021-12-31", post.PublishedAt)
	assert.Equal(t, "<ul><li>one</li><li>two</li></ul>", post.ContentHTML)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.repo.Create(context.Background(), models.PostInput{Content: "body"})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")
	assert.NotContains(t, verr.Fields, "content")

	_, _, err = f.repo.Create(context.Background(), models.PostInput{})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "content")

	_, _, err = f.repo.Create(context.Background(), models.PostInput{Title: "???", Content: "x"})
	require.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.files(t))
	_, err = os.Stat(f.cache.Path())
	assert.True(t, os.IsNotExist(err), "cache must not be written on validation failure")
}

func TestCreate_RejectsSlugCollision(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.repo.Create(context.Background(), models.PostInput{Title: "Hello World", Content: "first"})
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(f.dir, "hello-world.md"))
	require.NoError(t, err)

	_, _, err = f.repo.Create(context.Background(), models.PostInput{Title: "hello, world!", Content: "second"})
	require.ErrorIs(t, err, ErrSlugConflict)

	after, err := os.ReadFile(filepath.Join(f.dir, "hello-world.md"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCreate_RejectsSlugOwnedByOtherFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "legacy.md", "---\ntitle: Legacy\nslug: fresh-start\n---\nold")

	_, _, err := f.repo.Create(context.Background(), models.PostInput{Title: "Fresh Start", Content: "new"})
	require.ErrorIs(t, err, ErrSlugConflict)
	assert.Equal(t, []string{"legacy.md"}, f.files(t))
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.repo.Create(context.Background(), models.PostInput{Title: "Keep", Content: "k"})
	require.NoError(t, err)
	_, _, err = f.repo.Create(context.Background(), models.PostInput{Title: "Drop Me", Content: "d"})
	require.NoError(t, err)

	posts, err := f.repo.Remove(context.Background(), "Drop Me")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, slugs(posts))
	assert.Equal(t, []string{"keep.md"}, f.files(t))

	listed, err := f.repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, slugs(listed), "drop-me")

	cached, err := f.cache.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, slugs(cached))
}

func TestRemove_UsesOwningFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "2020-archive.md", "---\ntitle: Archived\nslug: archived-post\n---\nx")

	posts, err := f.repo.Remove(context.Background(), "archived-post")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, f.files(t))
}

func TestRemove_ContentDirOutsideRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "posts")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	repo := NewPostRepository(".", dir, NewCacheIndex(filepath.Join(t.TempDir(), "posts.json")), markdown.NewLite())

	created, _, err := repo.Create(context.Background(), models.PostInput{Title: "My Post", Content: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "my-post", created.Slug)

	posts, err := repo.Remove(context.Background(), "my-post")
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = os.Stat(filepath.Join(dir, "my-post.md"))
	assert.True(t, os.IsNotExist(err))
	listed, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestRemove_NotFoundLeavesDirectoryUnchanged(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "---\ntitle: A\n---\na")

	_, err := f.repo.Remove(context.Background(), "nonexistent-slug")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"a.md"}, f.files(t))
}

func TestRemove_CannotEscapeContentDir(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(f.root, "content", "secret.md")
	require.NoError(t, os.WriteFile(outside, []byte("---\ntitle: Secret\n---\n"), 0o644))

	_, err := f.repo.Remove(context.Background(), "../secret")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(outside)
	assert.NoError(t, err)

	_, err = f.repo.Remove(context.Background(), "../..")
	require.ErrorIs(t, err, ErrValidation)
}

func TestRebuild_WritesEmptyIndex(t *testing.T) {
	f := newFixture(t)

	posts, err := f.repo.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)

	raw, err := os.ReadFile(f.cache.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestSortPosts(t *testing.T) {
	posts := []models.Post{
		{Slug: "bad-date", PublishedAt: "someday"},
		{Slug: "mid", PublishedAt: "2024-01-02"},
		{Slug: "new", PublishedAt: "2024-01-02T10:00:00Z"},
		{Slug: "old", PublishedAt: "2020-05-05 08:00:00"},
	}
	SortPosts(posts)
	assert.Equal(t, []string{"new", "mid", "old", "bad-date"}, slugs(posts))
}
