// Package snapshot retains raw post renditions in a blob store so
// extraction heuristics can be re-run against historical fetches.
package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/feedlens/feedlens/internal/hash/sha256"
	"github.com/feedlens/feedlens/internal/pipeline"
)

// digestPrefixLen keeps object names short while still distinguishing
// revisions of the same post.
const digestPrefixLen = 12

// Sink implements pipeline.SnapshotSink over a BlobStore.
type Sink struct {
	blobs  pipeline.BlobStore
	hasher *sha256.Hasher
	prefix string
}

// New creates a snapshot sink writing under prefix.
func New(blobs pipeline.BlobStore, prefix string) (*Sink, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &Sink{
		blobs:  blobs,
		hasher: sha256.New(),
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// SaveSnapshot stores the raw rendition and returns its URI. The object
// name embeds a content digest so re-fetches of changed posts do not
// overwrite earlier snapshots.
func (s *Sink) SaveSnapshot(ctx context.Context, postID string, raw string) (string, error) {
	if postID == "" {
		return "", fmt.Errorf("post id is required")
	}
	digest, err := s.hasher.Hash([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	path := fmt.Sprintf("snapshots/%s-%s.txt", postID, digest[:digestPrefixLen])
	if s.prefix != "" {
		path = s.prefix + "/" + path
	}
	uri, err := s.blobs.PutObject(ctx, path, "text/plain; charset=utf-8", strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return uri, nil
}
