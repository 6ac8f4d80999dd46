package store_test

import (
	"errors"
	"testing"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/store"
	"github.com/starford/slideman/internal/testutil"
)

func TestNormalizeKeywordText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Revenue", "revenue"},
		{"  Q3   Review ", "q3 review"},
		{"GROWTH\tRATE", "growth rate"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := store.NormalizeKeywordText(tt.in); got != tt.want {
			t.Errorf("NormalizeKeywordText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetOrCreateKeywordCaseInsensitive(t *testing.T) {
	db := testutil.TestDB(t)

	k1, err := db.GetOrCreateKeyword("Revenue", models.KeywordTopic)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := db.GetOrCreateKeyword("revenue", models.KeywordTopic)
	if err != nil {
		t.Fatal(err)
	}
	if k1.ID != k2.ID {
		t.Errorf("case-insensitive lookup created a second keyword: %d vs %d", k1.ID, k2.ID)
	}
	// Original casing is preserved.
	if k2.Text != "Revenue" {
		t.Errorf("text = %q, want original casing %q", k2.Text, "Revenue")
	}

	// Same text with a different kind is a mismatch, not a new keyword.
	_, err = db.GetOrCreateKeyword("REVENUE", models.KeywordName)
	if !errors.Is(err, apperr.ErrKindMismatch) {
		t.Errorf("kind change err = %v, want ErrKindMismatch", err)
	}

	_, err = db.GetOrCreateKeyword("bogus", "color")
	if !errors.Is(err, apperr.ErrKindMismatch) {
		t.Errorf("unknown kind err = %v, want ErrKindMismatch", err)
	}
	_, err = db.GetOrCreateKeyword("   ", models.KeywordTopic)
	if err == nil {
		t.Error("blank text should be rejected")
	}
}

func TestTagKindRules(t *testing.T) {
	db := testutil.TestDB(t)
	_, _, slideIDs := seedDeck(t, db, "acme", 1)
	elems, err := db.ListElements(slideIDs[0])
	if err != nil {
		t.Fatal(err)
	}

	topic, _ := db.GetOrCreateKeyword("revenue", models.KeywordTopic)
	name, _ := db.GetOrCreateKeyword("logo", models.KeywordName)

	// Slides take topic/title keywords only.
	if err := db.TagSlide(slideIDs[0], topic.ID); err != nil {
		t.Fatalf("tag slide with topic: %v", err)
	}
	if err := db.TagSlide(slideIDs[0], name.ID); !errors.Is(err, apperr.ErrKindMismatch) {
		t.Errorf("tag slide with name kind err = %v, want ErrKindMismatch", err)
	}

	// Elements take name keywords only.
	if err := db.TagElement(elems[0].ID, name.ID); err != nil {
		t.Fatalf("tag element with name: %v", err)
	}
	if err := db.TagElement(elems[0].ID, topic.ID); !errors.Is(err, apperr.ErrKindMismatch) {
		t.Errorf("tag element with topic kind err = %v, want ErrKindMismatch", err)
	}

	// Tagging is idempotent.
	if err := db.TagSlide(slideIDs[0], topic.ID); err != nil {
		t.Fatalf("repeat tag: %v", err)
	}
	kws, err := db.SlideKeywords(slideIDs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(kws) != 1 {
		t.Errorf("slide keywords after repeat tag = %d, want 1", len(kws))
	}
}

func TestRenameKeyword(t *testing.T) {
	db := testutil.TestDB(t)
	k, _ := db.GetOrCreateKeyword("revenu", models.KeywordTopic)
	other, _ := db.GetOrCreateKeyword("growth", models.KeywordTopic)

	if err := db.RenameKeyword(k.ID, "revenue"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetKeyword(k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "revenue" || got.Kind != models.KeywordTopic {
		t.Errorf("after rename = %+v", got)
	}

	// Case-insensitive collision with another keyword.
	if err := db.RenameKeyword(k.ID, "GROWTH"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("collision err = %v, want ErrAlreadyExists", err)
	}
	// Renaming to its own text (case change) is allowed.
	if err := db.RenameKeyword(other.ID, "Growth"); err != nil {
		t.Errorf("case-only rename: %v", err)
	}

	if err := db.RenameKeyword(9999, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing keyword err = %v, want ErrNotFound", err)
	}
}

func TestMergeKeywords(t *testing.T) {
	db := testutil.TestDB(t)
	_, _, slideIDs := seedDeck(t, db, "acme", 2)
	elems0, _ := db.ListElements(slideIDs[0])

	winner, _ := db.GetOrCreateKeyword("revenue", models.KeywordTopic)
	loser, _ := db.GetOrCreateKeyword("revenu", models.KeywordTopic)

	if err := db.TagSlide(slideIDs[0], winner.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.TagSlide(slideIDs[0], loser.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.TagSlide(slideIDs[1], loser.ID); err != nil {
		t.Fatal(err)
	}

	if err := db.MergeKeywords(winner.ID, loser.ID); err != nil {
		t.Fatal(err)
	}

	// Loser is gone; winner carries every link exactly once.
	if _, err := db.GetKeyword(loser.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("loser after merge err = %v, want ErrNotFound", err)
	}
	sids, _, err := db.KeywordLinks(winner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sids) != 2 {
		t.Errorf("winner slide links = %v, want both slides", sids)
	}

	// Kind mismatch is rejected.
	name, _ := db.GetOrCreateKeyword("logo", models.KeywordName)
	if err := db.TagElement(elems0[0].ID, name.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.MergeKeywords(winner.ID, name.ID); !errors.Is(err, apperr.ErrKindMismatch) {
		t.Errorf("cross-kind merge err = %v, want ErrKindMismatch", err)
	}

	// Self-merge is rejected.
	if err := db.MergeKeywords(winner.ID, winner.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("self merge err = %v, want ErrConflict", err)
	}
}

func TestRestoreKeyword(t *testing.T) {
	db := testutil.TestDB(t)
	_, _, slideIDs := seedDeck(t, db, "acme", 1)

	k, _ := db.GetOrCreateKeyword("revenu", models.KeywordTopic)
	if err := db.TagSlide(slideIDs[0], k.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteKeyword(k.ID); err != nil {
		t.Fatal(err)
	}

	if err := db.RestoreKeyword(k, []int64{slideIDs[0]}, nil); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetKeyword(k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "revenu" || got.Kind != models.KeywordTopic {
		t.Errorf("restored keyword = %+v", got)
	}
	kws, err := db.SlideKeywords(slideIDs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(kws) != 1 || kws[0].ID != k.ID {
		t.Errorf("restored links = %v", kws)
	}
}

func TestRestoreKeywordElementLinkSearchable(t *testing.T) {
	db := testutil.TestDB(t)
	_, _, slideIDs := seedDeck(t, db, "acme", 1)
	elems, err := db.ListElements(slideIDs[0])
	if err != nil {
		t.Fatal(err)
	}

	// The slide's only link to the keyword is through one of its elements.
	k, _ := db.GetOrCreateKeyword("watermark", models.KeywordName)
	if err := db.TagElement(elems[0].ID, k.ID); err != nil {
		t.Fatal(err)
	}
	if hits, err := db.SearchSlides("watermark", 10); err != nil || len(hits) != 1 {
		t.Fatalf("search before delete = %v, %v; want 1 hit", hits, err)
	}

	if err := db.DeleteKeyword(k.ID); err != nil {
		t.Fatal(err)
	}
	if hits, err := db.SearchSlides("watermark", 10); err != nil || len(hits) != 0 {
		t.Fatalf("search after delete = %v, %v; want no hits", hits, err)
	}

	if err := db.RestoreKeyword(k, nil, []int64{elems[0].ID}); err != nil {
		t.Fatal(err)
	}
	hits, err := db.SearchSlides("watermark", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].SlideID != slideIDs[0] {
		t.Errorf("search after restore = %v, want the element's slide", hits)
	}
}
