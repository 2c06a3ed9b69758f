package model

import (
	"slices"
	"strings"
)

// Extract is the ordered set of media files that make up one post.
// It is immutable; accessors hand out copies.
type Extract struct {
	paths []string
}

func NewExtract(paths ...string) Extract {
	return Extract{paths: slices.Clone(paths)}
}

func (e Extract) Paths() []string { return slices.Clone(e.paths) }
func (e Extract) Len() int        { return len(e.paths) }
func (e Extract) Empty() bool     { return len(e.paths) == 0 }

func (e Extract) String() string {
	return "[" + strings.Join(e.paths, ", ") + "]"
}

// PostHandle identifies a post created on a remote service.
type PostHandle struct {
	Service string
	ID      string
	URI     string // at:// for bluesky, the ActivityPub uri for mastodon
	URL     string // browser link, may be empty
}

func (h PostHandle) String() string {
	if h.URL != "" {
		return h.URL
	}
	if h.URI != "" {
		return h.URI
	}
	return h.ID
}
