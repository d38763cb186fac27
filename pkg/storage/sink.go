// Package storage persists a run's collected post set under the configured
// data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"liscraper/pkg/errors"
	"liscraper/pkg/models"
)

// Sink writes collected post sets as per-profile JSON files. Writes are
// atomic: a crash mid-write never leaves a truncated file at the
// destination, and writing the same set twice produces byte-identical
// output.
type Sink struct {
	dataDir string
}

// NewSink creates a Sink rooted at dataDir, creating the directory if
// absent. A directory that cannot be created is a configuration error: it
// is surfaced before any browser session is opened.
func NewSink(dataDir string) (*Sink, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfig,
			fmt.Sprintf("cannot create data directory %s", dataDir), err)
	}
	return &Sink{dataDir: dataDir}, nil
}

// Path returns the destination file for a profile's posts.
func (s *Sink) Path(profile string) string {
	return filepath.Join(s.dataDir, sanitize(profile)+"_posts.json")
}

// Write serializes posts in the given order to the profile's file. The
// temporary file lives in the same directory so the final rename is atomic.
func (s *Sink) Write(profile string, posts []models.Post) (string, error) {
	dest := s.Path(profile)

	tmp, err := os.CreateTemp(s.dataDir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot create temporary file for %s", dest), err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(posts); err != nil {
		tmp.Close()
		cleanup()
		return "", errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot encode posts for %s", dest), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot sync %s", dest), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot close temporary file for %s", dest), err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return "", errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot move result into place at %s", dest), err)
	}
	return dest, nil
}

// LoadExisting reads a previous run's file for the profile. A missing file
// returns an empty set; an unreadable or corrupt file is an IO error.
func (s *Sink) LoadExisting(profile string) ([]models.Post, error) {
	dest := s.Path(profile)
	data, err := os.ReadFile(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot read existing result at %s", dest), err)
	}
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeIO,
			fmt.Sprintf("cannot decode existing result at %s", dest), err)
	}
	return posts, nil
}

// MergeHistory folds a previous run's records into the fresh set: records
// re-observed this run are fill-forward merged in place, records only known
// from history are appended after the fresh entries in their stored order.
// Fresh-run ordering is never disturbed.
func MergeHistory(fresh, history []models.Post) []models.Post {
	merged := make([]models.Post, len(fresh))
	copy(merged, fresh)

	index := make(map[string]int, len(merged))
	for i, p := range merged {
		index[p.PostID] = i
	}
	for _, old := range history {
		if old.PostID == "" {
			continue
		}
		if i, ok := index[old.PostID]; ok {
			merged[i].FillForward(old)
			continue
		}
		index[old.PostID] = len(merged)
		merged = append(merged, old)
	}
	return merged
}

// sanitize keeps profile-derived filenames free of path separators.
func sanitize(profile string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, profile)
}
