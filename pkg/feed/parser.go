// Package feed turns raw rendered-markup snapshots of a LinkedIn profile
// feed into structured post records.
//
// Extraction contract (v1): a post item is any element carrying a
// data-urn="urn:li:activity:…" attribute. Every other field is optional and
// extracted through a list of candidate selectors tried in order, so a post
// with no text, no timestamp, or no media still yields a record with those
// fields empty. A snapshot with no recognizable items yields an empty slice,
// never an error.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"liscraper/pkg/models"
)

const activityURNPrefix = "urn:li:activity:"

var textSelectors = []string{
	".update-components-text",
	".feed-shared-update-v2__description",
	".feed-shared-text",
	".break-words",
}

var timeSelectors = []string{
	".update-components-actor__sub-description",
	".feed-shared-actor__sub-description",
}

// Parse extracts the ordered post records visible in one snapshot. author
// is the profile handle the feed belongs to; now stamps each record's
// capture time. Parse is pure: it never mutates shared state and never
// fails, degraded snapshots simply contribute fewer (or zero) records.
func Parse(snapshot, author string, now time.Time) []models.Post {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil
	}

	var posts []models.Post
	seen := make(map[string]bool)

	doc.Find("[data-urn]").Each(func(_ int, item *goquery.Selection) {
		urn, _ := item.Attr("data-urn")
		if !strings.HasPrefix(urn, activityURNPrefix) {
			return
		}
		post := extractPost(item, author, now)
		post.PostID = urn
		post.IDSource = models.IDSourceURN
		if seen[post.PostID] {
			return
		}
		seen[post.PostID] = true
		posts = append(posts, post)
	})

	// Older layouts render items without a data-urn attribute. Fall back to
	// the update container class and a content-derived identity.
	if len(posts) == 0 {
		doc.Find(".feed-shared-update-v2, .profile-creator-shared-feed-update__container").Each(func(_ int, item *goquery.Selection) {
			post := extractPost(item, author, now)
			if post.Text == "" && len(post.MediaRefs) == 0 {
				return
			}
			post.PostID = contentHash(post)
			post.IDSource = models.IDSourceContentHash
			if seen[post.PostID] {
				return
			}
			seen[post.PostID] = true
			posts = append(posts, post)
		})
	}

	return posts
}

func extractPost(item *goquery.Selection, author string, now time.Time) models.Post {
	return models.Post{
		Author:      author,
		Text:        firstText(item, textSelectors),
		PostedAt:    postedAt(item),
		MediaRefs:   mediaRefs(item),
		ExtractedAt: now,
	}
}

// firstText returns the text of the first candidate selector that matches
// with non-empty content.
func firstText(scope *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(scope.Find(sel).First().Text()); text != "" {
			return normalizeWhitespace(text)
		}
	}
	return ""
}

// postedAt extracts the best-effort timestamp. The feed only renders a
// relative age ("3d", "2w") followed by visibility markers, so the value is
// the leading token before the first bullet separator.
func postedAt(item *goquery.Selection) string {
	raw := firstText(item, timeSelectors)
	if raw == "" {
		return ""
	}
	if i := strings.IndexRune(raw, '•'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func mediaRefs(item *goquery.Selection) []string {
	var refs []string
	add := func(ref string, ok bool) {
		ref = strings.TrimSpace(ref)
		if !ok || ref == "" {
			return
		}
		for _, existing := range refs {
			if existing == ref {
				return
			}
		}
		refs = append(refs, ref)
	}

	item.Find("img.update-components-image__image, .feed-shared-image img").Each(func(_ int, img *goquery.Selection) {
		add(img.Attr("src"))
	})
	item.Find("video").Each(func(_ int, video *goquery.Selection) {
		if src, ok := video.Attr("src"); ok {
			add(src, true)
			return
		}
		add(video.Attr("data-sources"))
	})
	return refs
}

// contentHash derives a fallback identity from author, text, and the
// approximate timestamp. Documented lower-confidence: a later edit of the
// same post hashes differently.
func contentHash(post models.Post) string {
	h := sha256.New()
	h.Write([]byte(post.Author))
	h.Write([]byte{0})
	h.Write([]byte(post.Text))
	h.Write([]byte{0})
	h.Write([]byte(post.PostedAt))
	return hex.EncodeToString(h.Sum(nil))[:20]
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
