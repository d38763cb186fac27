package models

import "time"

// How a post's identity was derived.
const (
	// IDSourceURN means the id is the native activity URN embedded in the
	// feed markup. Stable across runs and across text edits.
	IDSourceURN = "urn"
	// IDSourceContentHash means no native identifier was present and the id
	// is a hash of author+text+timestamp. Lower confidence: an edited post
	// can hash to a different id than its earlier capture.
	IDSourceContentHash = "content_hash"
)

// Post is one extracted feed entry. Two posts with equal PostID are the
// same post regardless of drift in the other fields.
type Post struct {
	PostID      string    `json:"post_id"`
	IDSource    string    `json:"id_source"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	PostedAt    string    `json:"posted_at,omitempty"`
	MediaRefs   []string  `json:"media_refs,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// FillForward merges other into p, keeping p's non-empty fields and taking
// other's value only where p is empty. Identity fields never change.
func (p *Post) FillForward(other Post) {
	if p.Author == "" {
		p.Author = other.Author
	}
	if p.Text == "" {
		p.Text = other.Text
	}
	if p.PostedAt == "" {
		p.PostedAt = other.PostedAt
	}
	if len(p.MediaRefs) == 0 {
		p.MediaRefs = other.MediaRefs
	}
	if p.ExtractedAt.IsZero() {
		p.ExtractedAt = other.ExtractedAt
	}
}
