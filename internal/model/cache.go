package model

import "time"

// CacheEntry is one persisted resolution, positive or negative. It is
// keyed by the normalized phrase form and is the only entity that
// outlives a single question.
type CacheEntry struct {
	Key         string    `json:"key"`
	Title       string    `json:"title,omitempty"`
	ArticleText string    `json:"article_text,omitempty"`
	Unresolved  bool      `json:"unresolved,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Resolution converts a cache hit into a Resolution with Source set to
// SourceCache or SourceUnresolved.
func (e CacheEntry) Resolution() Resolution {
	if e.Unresolved {
		return Resolution{Source: SourceUnresolved}
	}
	return Resolution{
		Title:       e.Title,
		ArticleText: e.ArticleText,
		Source:      SourceCache,
	}
}
