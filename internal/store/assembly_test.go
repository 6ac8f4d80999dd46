package store_test

import (
	"errors"
	"testing"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/testutil"
)

func TestCreateAssemblyValidation(t *testing.T) {
	db := testutil.TestDB(t)
	pid, _, slideIDs := seedDeck(t, db, "acme", 3)
	otherPid, _, otherIDs := seedDeck(t, db, "globex", 1)

	a, err := db.CreateAssembly(pid, "Investor deck", []int64{slideIDs[2], slideIDs[0]})
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.GetAssembly(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SlideIDs) != 2 || got.SlideIDs[0] != slideIDs[2] || got.SlideIDs[1] != slideIDs[0] {
		t.Errorf("slide order = %v, want [%d %d]", got.SlideIDs, slideIDs[2], slideIDs[0])
	}

	// A slide may appear only once.
	_, err = db.CreateAssembly(pid, "dup", []int64{slideIDs[0], slideIDs[0]})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate slide err = %v, want ErrConflict", err)
	}

	// Slides must belong to the project.
	_, err = db.CreateAssembly(pid, "foreign", []int64{otherIDs[0]})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("foreign slide err = %v, want ErrConflict", err)
	}
	_ = otherPid

	// Missing slide.
	_, err = db.CreateAssembly(pid, "missing", []int64{99999})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing slide err = %v, want ErrNotFound", err)
	}
}

func TestReorderAssembly(t *testing.T) {
	db := testutil.TestDB(t)
	pid, _, slideIDs := seedDeck(t, db, "acme", 3)

	a, err := db.CreateAssembly(pid, "deck", slideIDs)
	if err != nil {
		t.Fatal(err)
	}

	// Reverse and drop the middle slide.
	if err := db.ReorderAssembly(a.ID, []int64{slideIDs[2], slideIDs[0]}); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetAssembly(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SlideIDs) != 2 || got.SlideIDs[0] != slideIDs[2] || got.SlideIDs[1] != slideIDs[0] {
		t.Errorf("reordered = %v", got.SlideIDs)
	}

	// Slides not already in the assembly are rejected.
	if err := db.ReorderAssembly(a.ID, []int64{slideIDs[1]}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("foreign reorder err = %v, want ErrConflict", err)
	}
}

func TestDeleteAssembly(t *testing.T) {
	db := testutil.TestDB(t)
	pid, _, slideIDs := seedDeck(t, db, "acme", 1)

	a, err := db.CreateAssembly(pid, "deck", slideIDs)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteAssembly(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetAssembly(a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted assembly err = %v, want ErrNotFound", err)
	}
	if err := db.DeleteAssembly(a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}

	// The slides themselves are untouched.
	if _, err := db.GetSlide(slideIDs[0]); err != nil {
		t.Errorf("slide after assembly delete: %v", err)
	}
}

func TestSlidesByKeywords(t *testing.T) {
	db := testutil.TestDB(t)
	pid, _, slideIDs := seedDeck(t, db, "acme", 3)

	revenue, _ := db.GetOrCreateKeyword("revenue", models.KeywordTopic)
	growth, _ := db.GetOrCreateKeyword("growth", models.KeywordTopic)
	logo, _ := db.GetOrCreateKeyword("logo", models.KeywordName)

	// slide0: revenue; slide1: revenue+growth; slide2: logo (via element).
	if err := db.TagSlide(slideIDs[0], revenue.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.TagSlide(slideIDs[1], revenue.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.TagSlide(slideIDs[1], growth.ID); err != nil {
		t.Fatal(err)
	}
	elems2, _ := db.ListElements(slideIDs[2])
	if err := db.TagElement(elems2[0].ID, logo.ID); err != nil {
		t.Fatal(err)
	}

	// ANY match.
	got, err := db.SlidesByKeywords(pid, []string{"revenue", "logo"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("any-match = %v, want all three slides", got)
	}

	// ALL match.
	got, err = db.SlidesByKeywords(pid, []string{"revenue", "growth"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != slideIDs[1] {
		t.Errorf("all-match = %v, want [%d]", got, slideIDs[1])
	}

	// Case-insensitive.
	got, err = db.SlidesByKeywords(pid, []string{"REVENUE"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("case-insensitive match = %v, want two slides", got)
	}

	got, err = db.SlidesByKeywords(pid, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("empty keyword list = %v, want nil", got)
	}
}
