package pptx_test

import (
	"path/filepath"
	"testing"

	"github.com/starford/slideman/internal/pptx"
	"github.com/starford/slideman/internal/testutil"
)

func openFixture(t *testing.T, slides ...testutil.SlideSpec) *pptx.Package {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.pptx")
	testutil.WritePresentation(t, path, slides...)
	p, err := pptx.OpenPackage(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSlidePartsOrder(t *testing.T) {
	p := openFixture(t,
		testutil.SlideSpec{Title: "One"},
		testutil.SlideSpec{Title: "Two"},
		testutil.SlideSpec{Title: "Three"},
	)
	parts, err := p.SlideParts()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide3.xml"}
	if len(parts) != len(want) {
		t.Fatalf("parts = %v", parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("parts[%d] = %q, want %q", i, parts[i], want[i])
		}
	}
}

func TestDeckTitlesAndElements(t *testing.T) {
	p := openFixture(t,
		testutil.SlideSpec{Title: "Quarterly Revenue", Images: 2},
		testutil.SlideSpec{Title: "Growth", Chart: true},
	)
	deck, err := p.Deck()
	if err != nil {
		t.Fatal(err)
	}
	if len(deck.Slides) != 2 {
		t.Fatalf("slides = %d, want 2", len(deck.Slides))
	}

	s0 := deck.Slides[0]
	if s0.Index != 0 || s0.Title != "Quarterly Revenue" {
		t.Errorf("slide 0 = %+v", s0)
	}
	// 1 title text shape + 2 pictures.
	if len(s0.Elements) != 3 {
		t.Fatalf("slide 0 elements = %d, want 3", len(s0.Elements))
	}
	if s0.Elements[0].Kind != pptx.ElementText {
		t.Errorf("element 0 kind = %q, want text", s0.Elements[0].Kind)
	}
	if s0.Elements[0].X != 838200 || s0.Elements[0].W != 10515600 {
		t.Errorf("title bounds = %+v", s0.Elements[0])
	}
	if s0.Elements[1].Kind != pptx.ElementImage || s0.Elements[2].Kind != pptx.ElementImage {
		t.Errorf("picture kinds = %q, %q", s0.Elements[1].Kind, s0.Elements[2].Kind)
	}
	if s0.Elements[1].X != 914400 || s0.Elements[2].X != 1828800 {
		t.Errorf("picture offsets = %d, %d", s0.Elements[1].X, s0.Elements[2].X)
	}

	s1 := deck.Slides[1]
	if s1.Title != "Growth" {
		t.Errorf("slide 1 title = %q", s1.Title)
	}
	if len(s1.Elements) != 2 {
		t.Fatalf("slide 1 elements = %d, want 2", len(s1.Elements))
	}
	if s1.Elements[1].Kind != pptx.ElementChart {
		t.Errorf("graphicFrame kind = %q, want chart", s1.Elements[1].Kind)
	}
	if s1.Elements[1].W != 4572000 || s1.Elements[1].H != 3200400 {
		t.Errorf("chart extent = %+v", s1.Elements[1])
	}
}

func TestDeckGroupedShapeCoordinates(t *testing.T) {
	p := openFixture(t, testutil.SlideSpec{Title: "Org", GroupedImages: 2})
	deck, err := p.Deck()
	if err != nil {
		t.Fatal(err)
	}
	if len(deck.Slides) != 1 {
		t.Fatalf("slides = %d, want 1", len(deck.Slides))
	}
	els := deck.Slides[0].Elements
	// 1 title text shape + 2 grouped pictures.
	if len(els) != 3 {
		t.Fatalf("elements = %+v", els)
	}

	// The fixture group sits at (1828800, 914400) with child space starting
	// at (914400, 457200) and scaled by 1/2. Children at child x 914400 and
	// 1828800 land at slide x 1828800 and 2286000; the 914400x685800 child
	// extent renders at 457200x342900.
	want := []pptx.Element{
		{Kind: pptx.ElementImage, X: 1828800, Y: 914400, W: 457200, H: 342900},
		{Kind: pptx.ElementImage, X: 2286000, Y: 914400, W: 457200, H: 342900},
	}
	for i, w := range want {
		if els[i+1] != w {
			t.Errorf("grouped element %d = %+v, want %+v", i, els[i+1], w)
		}
	}

	// The ungrouped title keeps its own coordinates.
	if els[0].X != 838200 || els[0].Y != 365125 {
		t.Errorf("title bounds = %+v", els[0])
	}
}

func TestThumbnail(t *testing.T) {
	p := openFixture(t, testutil.SlideSpec{Title: "One"})
	name, data, ok := p.Thumbnail()
	if !ok {
		t.Fatal("fixture carries an embedded thumbnail")
	}
	if name != "docProps/thumbnail.jpeg" {
		t.Errorf("thumbnail name = %q", name)
	}
	if len(data) == 0 {
		t.Error("thumbnail empty")
	}
}

func TestRelationships(t *testing.T) {
	p := openFixture(t, testutil.SlideSpec{Title: "One", Images: 1})

	rels, err := p.Relationships("ppt/slides/slide1.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 {
		t.Fatalf("rels = %+v", rels)
	}
	target := pptx.ResolveTarget("ppt/slides/slide1.xml", rels[1].Target)
	if target != "ppt/media/image1.png" {
		t.Errorf("resolved target = %q", target)
	}
	if !p.HasPart(target) {
		t.Errorf("target part %q missing", target)
	}

	// Missing rels part is not an error.
	rels, err = p.Relationships("ppt/theme/theme1.xml")
	if err != nil || rels != nil {
		t.Errorf("theme rels = %v, %v; want nil, nil", rels, err)
	}
}

func TestRelsPathFor(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ppt/presentation.xml", "ppt/_rels/presentation.xml.rels"},
		{"ppt/slides/slide2.xml", "ppt/slides/_rels/slide2.xml.rels"},
	}
	for _, tt := range tests {
		if got := pptx.RelsPathFor(tt.in); got != tt.want {
			t.Errorf("RelsPathFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
