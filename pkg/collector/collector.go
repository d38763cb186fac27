// Package collector accumulates parsed post batches into one de-duplicated,
// insertion-ordered set per run.
package collector

import "liscraper/pkg/models"

// Collector merges streamed batches from the parser. Entries never move and
// are never removed once inserted; re-observed posts are fill-forward
// merged. After the target count is reached, new identities are dropped but
// merges of already-known posts are still applied.
type Collector struct {
	target int
	order  []string
	posts  map[string]*models.Post
}

// New creates a Collector that stops accepting new identities once target
// posts have been collected.
func New(target int) *Collector {
	return &Collector{
		target: target,
		posts:  make(map[string]*models.Post),
	}
}

// Add merges a batch in arrival order and returns how many previously
// unknown posts it contributed.
func (c *Collector) Add(batch []models.Post) int {
	added := 0
	for _, record := range batch {
		if record.PostID == "" {
			continue
		}
		if existing, ok := c.posts[record.PostID]; ok {
			existing.FillForward(record)
			continue
		}
		if c.Full() {
			continue
		}
		copied := record
		c.posts[record.PostID] = &copied
		c.order = append(c.order, record.PostID)
		added++
	}
	return added
}

// Len returns the number of collected posts.
func (c *Collector) Len() int {
	return len(c.order)
}

// Full reports whether the target count has been reached.
func (c *Collector) Full() bool {
	return len(c.order) >= c.target
}

// Posts returns the collected set in first-seen feed order. The returned
// slice is the final hand-off value; it is a copy, so the caller owns it.
func (c *Collector) Posts() []models.Post {
	out := make([]models.Post, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.posts[id])
	}
	return out
}
