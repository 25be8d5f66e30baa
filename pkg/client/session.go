package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"blog-cms/pkg/markdown"
	"blog-cms/pkg/models"
	"blog-cms/pkg/services"
)

type State int

const (
	Anonymous State = iota
	Privileged
)

func (s State) String() string {
	if s == Privileged {
		return "privileged"
	}
	return "anonymous"
}

const draftSummaryLength = 160

var (
	ErrNotPrivileged   = errors.New("admin login required")
	ErrIncompleteDraft = errors.New("draft needs a title and content")
	ErrDraftNotFound   = errors.New("draft not found")
)

type draft struct {
	post  models.Post
	input models.PostInput
}

// Session holds one reader's view of the blog: the live posts, any local
// drafts, the active filters and the admin state. Drafts never leave the
// session until published. A Session is not safe for concurrent use.
type Session struct {
	backend  Backend
	store    CredentialStore
	renderer *markdown.Lite
	now      func() time.Time

	state  State
	token  string
	live   []models.Post
	drafts []draft // most recent first

	query     string
	tag       string
	displayed []models.Post
}

func NewSession(backend Backend, store CredentialStore) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	s := &Session{
		backend:  backend,
		store:    store,
		renderer: markdown.NewLite(),
		now:      time.Now,
	}
	s.recompute()
	return s
}

func (s *Session) State() State {
	return s.state
}

// Restore re-validates a previously stored credential. Any failure drops
// back to Anonymous and forgets the credential.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		s.demote()
		return nil
	}
	if err := s.backend.Login(ctx, token); err != nil {
		slog.Warn("Stored admin credential rejected", "error", err)
		s.demote()
		return err
	}
	s.promote(token)
	return nil
}

func (s *Session) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if err := s.backend.Login(ctx, token); err != nil {
		s.demote()
		return err
	}
	if err := s.store.Save(token); err != nil {
		slog.Warn("Unable to persist admin credential", "error", err)
	}
	s.promote(token)
	return nil
}

func (s *Session) Logout() {
	s.demote()
}

func (s *Session) promote(token string) {
	s.state = Privileged
	s.token = token
	s.recompute()
}

func (s *Session) demote() {
	if err := s.store.Clear(); err != nil {
		slog.Warn("Unable to clear admin credential", "error", err)
	}
	s.state = Anonymous
	s.token = ""
	s.recompute()
}

// Refresh reloads the live posts. Drafts whose slug is now live are dropped.
func (s *Session) Refresh(ctx context.Context) error {
	posts, err := s.backend.ListPosts(ctx)
	if err != nil {
		return err
	}
	s.setLive(posts)
	return nil
}

func (s *Session) setLive(posts []models.Post) {
	s.live = slices.Clone(posts)
	services.SortPosts(s.live)
	s.drafts = slices.DeleteFunc(s.drafts, func(d draft) bool {
		return slices.ContainsFunc(s.live, func(p models.Post) bool { return p.Slug == d.post.Slug })
	})
	s.recompute()
}

// Preview turns in into a local draft, replacing any draft with the same
// slug and placing it first.
func (s *Session) Preview(in models.PostInput) (models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	slug := services.Slugify(in.Title)
	if in.Title == "" || in.Content == "" || slug == "" {
		return models.Post{}, ErrIncompleteDraft
	}
	if in.Date == "" {
		in.Date = s.now().Format(time.DateOnly)
	}

	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		summary = services.Excerpt(in.Content, draftSummaryLength)
	}
	html, err := s.renderer.Render(in.Content)
	if err != nil {
		return models.Post{}, err
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	post := models.Post{
		Title:        in.Title,
		Slug:         slug,
		PublishedAt:  in.Date,
		Summary:      summary,
		Tags:         tags,
		HeroImage:    in.HeroImage,
		CanonicalURL: in.CanonicalURL,
		ReadingTime:  services.ReadingTime(in.Content),
		ContentHTML:  html,
		SourcePath:   "content/posts/" + slug + ".md",
		IsDraft:      true,
	}
	s.dropDraft(slug)
	s.drafts = slices.Insert(s.drafts, 0, draft{post: post, input: in})
	s.recompute()
	return post, nil
}

// DraftMarkdown returns the content file a draft would be published as, for
// authors who commit files by hand.
func (s *Session) DraftMarkdown(slug string) (string, error) {
	d, ok := s.findDraft(slug)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDraftNotFound, slug)
	}
	return services.EncodeFrontmatter(d.input), nil
}

// Publish creates the draft on the server. On success the draft is evicted
// and the live set reloaded; if the reload fails the list returned by the
// create call is used instead.
func (s *Session) Publish(ctx context.Context, slug string) (models.Post, error) {
	if s.state != Privileged {
		return models.Post{}, ErrNotPrivileged
	}
	d, ok := s.findDraft(slug)
	if !ok {
		return models.Post{}, fmt.Errorf("%w: %s", ErrDraftNotFound, slug)
	}

	post, posts, err := s.backend.CreatePost(ctx, s.token, d.input)
	if err != nil {
		return models.Post{}, err
	}
	s.dropDraft(slug)
	if err := s.Refresh(ctx); err != nil {
		slog.Warn("Reload after publish failed", "error", err)
		s.setLive(posts)
	}
	return post, nil
}

func (s *Session) RemoveDraft(slug string) bool {
	removed := s.dropDraft(slug)
	s.recompute()
	return removed
}

func (s *Session) RemoveLive(ctx context.Context, slug string) error {
	if s.state != Privileged {
		return ErrNotPrivileged
	}
	posts, err := s.backend.DeletePost(ctx, s.token, slug)
	if err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		slog.Warn("Reload after delete failed", "error", err)
		s.setLive(posts)
	}
	return nil
}

func (s *Session) SetQuery(q string) {
	s.query = strings.TrimSpace(q)
	s.recompute()
}

// SetTag filters on an exact tag. An empty tag clears the filter.
func (s *Session) SetTag(tag string) {
	s.tag = tag
	s.recompute()
}

// Displayed returns the filtered posts in display order.
func (s *Session) Displayed() []models.Post {
	return slices.Clone(s.displayed)
}

// Tags lists the distinct tags of the unfiltered set in display order.
func (s *Session) Tags() []string {
	var tags []string
	for _, p := range s.combined() {
		for _, t := range p.Tags {
			if !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func (s *Session) combined() []models.Post {
	out := make([]models.Post, 0, len(s.drafts)+len(s.live))
	if s.state == Privileged {
		for _, d := range s.drafts {
			out = append(out, d.post)
		}
	}
	return append(out, s.live...)
}

func (s *Session) recompute() {
	query := strings.ToLower(s.query)
	s.displayed = slices.DeleteFunc(s.combined(), func(p models.Post) bool {
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Summary), query) {
			return true
		}
		return s.tag != "" && !p.HasTag(s.tag)
	})
}

func (s *Session) findDraft(slug string) (draft, bool) {
	idx := slices.IndexFunc(s.drafts, func(d draft) bool { return d.post.Slug == slug })
	if idx < 0 {
		return draft{}, false
	}
	return s.drafts[idx], true
}

func (s *Session) dropDraft(slug string) bool {
	n := len(s.drafts)
	s.drafts = slices.DeleteFunc(s.drafts, func(d draft) bool { return d.post.Slug == slug })
	return len(s.drafts) != n
}
