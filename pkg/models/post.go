package models

// Post is a published (or, client side, draft) article.
type Post struct {
	Title        string   `json:"title"`
	Slug         string   `json:"slug"`
	PublishedAt  string   `json:"publishedAt"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	HeroImage    string   `json:"heroImage"`
	CanonicalURL string   `json:"canonicalUrl"`
	ReadingTime  int      `json:"readingTime"`
	ContentHTML  string   `json:"contentHtml"`
	SourcePath   string   `json:"sourcePath"`
	IsDraft      bool     `json:"isDraft,omitempty"` // client only, never written to disk
}

// PostInput is the payload accepted by create.
type PostInput struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	HeroImage    string   `json:"heroImage"`
	CanonicalURL string   `json:"canonicalUrl"`
	Content      string   `json:"content"`
	Date         string   `json:"date"`
}

// HasTag reports whether tag is one of the post's tags.
func (p Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
