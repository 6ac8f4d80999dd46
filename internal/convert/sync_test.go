package convert_test

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/testutil"
)

func TestSyncRegistersAndConverts(t *testing.T) {
	pool, db, lib, _ := newPool(t)
	writeDeck(t, lib, "acme/q3.pptx", testutil.SlideSpec{Title: "Q3"})
	writeDeck(t, lib, "globex/intro.pptx", testutil.SlideSpec{Title: "Intro"}, testutil.SlideSpec{Title: "Team"})

	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	for rel, slides := range map[string]int{"acme/q3.pptx": 1, "globex/intro.pptx": 2} {
		f, err := db.GetFileByPath(rel)
		if err != nil {
			t.Fatalf("%s: %v", rel, err)
		}
		if f.Status != models.FileStatusReady || f.SlideCount != slides {
			t.Errorf("%s = %+v, want ready with %d slides", rel, f, slides)
		}
	}
	if _, err := db.GetProjectByFolder("globex"); err != nil {
		t.Errorf("globex project not registered: %v", err)
	}
}

func TestSyncSkipsUnchangedFiles(t *testing.T) {
	pool, _, lib, log := newPool(t)
	writeDeck(t, lib, "acme/q3.pptx", testutil.SlideSpec{Title: "Q3"})

	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := log.count("done")
	if first != 1 {
		t.Fatalf("first sync done events = %d", first)
	}

	// Second sync with an unchanged checksum converts nothing.
	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if log.count("queued") != 1 {
		t.Errorf("unchanged file re-queued: %v", log.snapshot())
	}
}

func TestSyncReconvertsChangedFile(t *testing.T) {
	pool, db, lib, _ := newPool(t)
	writeDeck(t, lib, "acme/q3.pptx", testutil.SlideSpec{Title: "Q3"})
	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Overwrite with more slides; the checksum changes.
	writeDeck(t, lib, "acme/q3.pptx", testutil.SlideSpec{Title: "Q3"}, testutil.SlideSpec{Title: "Outlook"})
	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	f, err := db.GetFileByPath("acme/q3.pptx")
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != models.FileStatusReady || f.SlideCount != 2 {
		t.Errorf("file = %+v, want ready with 2 slides", f)
	}
}

func TestSyncPrunesRemovedFiles(t *testing.T) {
	pool, db, lib, log := newPool(t)
	writeDeck(t, lib, "acme/q3.pptx", testutil.SlideSpec{Title: "Q3"})
	writeDeck(t, lib, "acme/old.pptx", testutil.SlideSpec{Title: "Old"})

	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := lib.Delete("acme/old.pptx"); err != nil {
		t.Fatal(err)
	}
	if err := pool.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetFileByPath("acme/old.pptx"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale file err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetFileByPath("acme/q3.pptx"); err != nil {
		t.Errorf("surviving file: %v", err)
	}
	if log.count("removed") != 1 {
		t.Errorf("events = %v", log.snapshot())
	}
}
