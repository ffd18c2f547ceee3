package client

import (
	"context"
	"sync"
)

// BookmarkSet is an optimistic local view of the caller's bookmarks. Toggle
// flips the local state immediately and reconciles with the server; on
// failure the flip is rolled back and the error returned. UIs read the
// local view and never wait for the round trip.
type BookmarkSet struct {
	client *Client

	mu  sync.RWMutex
	ids map[string]bool
}

// NewBookmarkSet creates an empty bookmark view backed by the client
func NewBookmarkSet(c *Client) *BookmarkSet {
	return &BookmarkSet{
		client: c,
		ids:    make(map[string]bool),
	}
}

// Load replaces the local view with the server state
func (b *BookmarkSet) Load(ctx context.Context) error {
	ids, err := b.client.Bookmarks(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.ids = make(map[string]bool, len(ids))
	for _, id := range ids {
		b.ids[id] = true
	}
	b.mu.Unlock()
	return nil
}

// Contains reports whether the use case is bookmarked in the local view
func (b *BookmarkSet) Contains(useCaseID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ids[useCaseID]
}

// IDs returns the local view as a slice
func (b *BookmarkSet) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	return ids
}

// Toggle flips the bookmark optimistically. The returned bool is the new
// local state; a non-nil error means the flip was rolled back.
func (b *BookmarkSet) Toggle(ctx context.Context, useCaseID string) (bool, error) {
	b.mu.Lock()
	adding := !b.ids[useCaseID]
	if adding {
		b.ids[useCaseID] = true
	} else {
		delete(b.ids, useCaseID)
	}
	b.mu.Unlock()

	var err error
	if adding {
		err = b.client.AddBookmark(ctx, useCaseID)
	} else {
		err = b.client.RemoveBookmark(ctx, useCaseID)
	}

	if err != nil {
		// Roll back the optimistic flip
		b.mu.Lock()
		if adding {
			delete(b.ids, useCaseID)
		} else {
			b.ids[useCaseID] = true
		}
		b.mu.Unlock()
		return !adding, err
	}

	return adding, nil
}

// ProgressSet is the optimistic counterpart for completed implementation
// steps, scoped to one use case.
type ProgressSet struct {
	client    *Client
	useCaseID string

	mu    sync.RWMutex
	steps map[string]bool
}

// NewProgressSet creates an empty progress view for one use case
func NewProgressSet(c *Client, useCaseID string) *ProgressSet {
	return &ProgressSet{
		client:    c,
		useCaseID: useCaseID,
		steps:     make(map[string]bool),
	}
}

// Load replaces the local view with the server state
func (p *ProgressSet) Load(ctx context.Context) error {
	ids, err := p.client.Progress(ctx, p.useCaseID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.steps = make(map[string]bool, len(ids))
	for _, id := range ids {
		p.steps[id] = true
	}
	p.mu.Unlock()
	return nil
}

// Done reports whether the step is completed in the local view
func (p *ProgressSet) Done(stepID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.steps[stepID]
}

// Count returns the number of completed steps in the local view
func (p *ProgressSet) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

// Toggle flips a step's completion optimistically, rolling back on error
func (p *ProgressSet) Toggle(ctx context.Context, stepID string) (bool, error) {
	p.mu.Lock()
	completing := !p.steps[stepID]
	if completing {
		p.steps[stepID] = true
	} else {
		delete(p.steps, stepID)
	}
	p.mu.Unlock()

	var err error
	if completing {
		err = p.client.MarkStep(ctx, p.useCaseID, stepID)
	} else {
		err = p.client.UnmarkStep(ctx, stepID)
	}

	if err != nil {
		p.mu.Lock()
		if completing {
			delete(p.steps, stepID)
		} else {
			p.steps[stepID] = true
		}
		p.mu.Unlock()
		return !completing, err
	}

	return completing, nil
}
