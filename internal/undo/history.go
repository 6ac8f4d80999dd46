// Package undo provides a bounded command history with undo/redo for
// tagging operations.
package undo

import (
	"fmt"
	"sync"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/store"
)

// Command is a reversible mutation of the keyword store.
type Command interface {
	// Name identifies the command in history listings.
	Name() string
	// Apply performs the mutation.
	Apply(db *store.DB) error
	// Revert undoes a previously applied mutation.
	Revert(db *store.DB) error
}

// History is a bounded undo/redo stack. Executing a new command clears the
// redo stack.
type History struct {
	mu     sync.Mutex
	db     *store.DB
	limit  int
	done   []Command
	undone []Command
}

// NewHistory creates a history bounded to limit commands.
func NewHistory(db *store.DB, limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{db: db, limit: limit}
}

// Do applies cmd and records it.
func (h *History) Do(cmd Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := cmd.Apply(h.db); err != nil {
		return err
	}
	h.done = append(h.done, cmd)
	if len(h.done) > h.limit {
		h.done = h.done[len(h.done)-h.limit:]
	}
	h.undone = h.undone[:0]
	return nil
}

// Undo reverts the most recent command.
func (h *History) Undo() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.done) == 0 {
		return "", fmt.Errorf("undo: nothing to undo: %w", apperr.ErrNotFound)
	}
	cmd := h.done[len(h.done)-1]
	if err := cmd.Revert(h.db); err != nil {
		return "", err
	}
	h.done = h.done[:len(h.done)-1]
	h.undone = append(h.undone, cmd)
	return cmd.Name(), nil
}

// Redo re-applies the most recently undone command.
func (h *History) Redo() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undone) == 0 {
		return "", fmt.Errorf("undo: nothing to redo: %w", apperr.ErrNotFound)
	}
	cmd := h.undone[len(h.undone)-1]
	if err := cmd.Apply(h.db); err != nil {
		return "", err
	}
	h.undone = h.undone[:len(h.undone)-1]
	h.done = append(h.done, cmd)
	return cmd.Name(), nil
}

// Names returns the names of applied commands, oldest first.
func (h *History) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.done))
	for i, cmd := range h.done {
		out[i] = cmd.Name()
	}
	return out
}

// TagSlide attaches a slide-level keyword.
type TagSlide struct {
	SlideID   int64
	KeywordID int64
}

func (c TagSlide) Name() string { return fmt.Sprintf("tag slide %d with keyword %d", c.SlideID, c.KeywordID) }

func (c TagSlide) Apply(db *store.DB) error { return db.TagSlide(c.SlideID, c.KeywordID) }

func (c TagSlide) Revert(db *store.DB) error { return db.UntagSlide(c.SlideID, c.KeywordID) }

// UntagSlide detaches a slide-level keyword.
type UntagSlide struct {
	SlideID   int64
	KeywordID int64
}

func (c UntagSlide) Name() string {
	return fmt.Sprintf("untag slide %d keyword %d", c.SlideID, c.KeywordID)
}

func (c UntagSlide) Apply(db *store.DB) error { return db.UntagSlide(c.SlideID, c.KeywordID) }

func (c UntagSlide) Revert(db *store.DB) error { return db.TagSlide(c.SlideID, c.KeywordID) }

// TagElement attaches an element-level keyword.
type TagElement struct {
	ElementID int64
	KeywordID int64
}

func (c TagElement) Name() string {
	return fmt.Sprintf("tag element %d with keyword %d", c.ElementID, c.KeywordID)
}

func (c TagElement) Apply(db *store.DB) error { return db.TagElement(c.ElementID, c.KeywordID) }

func (c TagElement) Revert(db *store.DB) error { return db.UntagElement(c.ElementID, c.KeywordID) }

// UntagElement detaches an element-level keyword.
type UntagElement struct {
	ElementID int64
	KeywordID int64
}

func (c UntagElement) Name() string {
	return fmt.Sprintf("untag element %d keyword %d", c.ElementID, c.KeywordID)
}

func (c UntagElement) Apply(db *store.DB) error { return db.UntagElement(c.ElementID, c.KeywordID) }

func (c UntagElement) Revert(db *store.DB) error { return db.TagElement(c.ElementID, c.KeywordID) }

// RenameKeyword changes a keyword's text.
type RenameKeyword struct {
	KeywordID int64
	OldText   string
	NewText   string
}

func (c RenameKeyword) Name() string {
	return fmt.Sprintf("rename keyword %q to %q", c.OldText, c.NewText)
}

func (c RenameKeyword) Apply(db *store.DB) error { return db.RenameKeyword(c.KeywordID, c.NewText) }

func (c RenameKeyword) Revert(db *store.DB) error { return db.RenameKeyword(c.KeywordID, c.OldText) }

// MergeKeywords folds the loser keyword into the winner. Revert restores the
// loser and its links from the snapshot captured during Apply.
type MergeKeywords struct {
	WinnerID int64
	LoserID  int64

	loser      models.Keyword
	slideIDs   []int64
	elementIDs []int64
	// Links the winner held before the merge, so Revert can strip only the
	// ones the merge added.
	winnerSlides   map[int64]struct{}
	winnerElements map[int64]struct{}
}

func (c *MergeKeywords) Name() string {
	return fmt.Sprintf("merge keyword %d into %d", c.LoserID, c.WinnerID)
}

func (c *MergeKeywords) Apply(db *store.DB) error {
	loser, err := db.GetKeyword(c.LoserID)
	if err != nil {
		return err
	}
	slideIDs, elementIDs, err := db.KeywordLinks(c.LoserID)
	if err != nil {
		return err
	}
	wSlides, wElements, err := db.KeywordLinks(c.WinnerID)
	if err != nil {
		return err
	}
	if err := db.MergeKeywords(c.WinnerID, c.LoserID); err != nil {
		return err
	}
	c.loser = loser
	c.slideIDs = slideIDs
	c.elementIDs = elementIDs
	c.winnerSlides = toSet(wSlides)
	c.winnerElements = toSet(wElements)
	return nil
}

func (c *MergeKeywords) Revert(db *store.DB) error {
	if err := db.RestoreKeyword(c.loser, c.slideIDs, c.elementIDs); err != nil {
		return err
	}
	// Strip the links the merge grafted onto the winner.
	for _, sid := range c.slideIDs {
		if _, had := c.winnerSlides[sid]; !had {
			if err := db.UntagSlide(sid, c.WinnerID); err != nil {
				return err
			}
		}
	}
	for _, eid := range c.elementIDs {
		if _, had := c.winnerElements[eid]; !had {
			if err := db.UntagElement(eid, c.WinnerID); err != nil {
				return err
			}
		}
	}
	return nil
}

func toSet(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
