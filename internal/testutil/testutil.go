// Package testutil provides shared test helpers for setting up libraries,
// databases, and synthetic .pptx fixtures.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/slideman/internal/library"
	"github.com/starford/slideman/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "slideman-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary library directory with a library.Provider.
func TestLibrary(t *testing.T) (string, library.Provider) {
	t.Helper()
	dir := t.TempDir()
	lib, err := library.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, lib
}

// Logger returns a logger that discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SlideSpec describes one slide of a synthetic presentation fixture.
type SlideSpec struct {
	Title  string
	Images int
	Chart  bool
	// GroupedImages adds a p:grpSp holding this many pictures. The group
	// carries an offset and a 2:1 child-space scale so group-relative
	// coordinates differ from absolute slide coordinates.
	GroupedImages int
}

const (
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsC = "http://schemas.openxmlformats.org/drawingml/2006/chart"

	relNS  = "http://schemas.openxmlformats.org/package/2006/relationships"
	ctNS   = "http://schemas.openxmlformats.org/package/2006/content-types"
	relPre = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// tiny valid-enough PNG header bytes for media parts.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

// WritePresentation writes a minimal but well-formed .pptx with the given
// slides to dst. Each slide has a title placeholder shape; images and an
// optional chart are added as additional shapes with relationships and parts.
func WritePresentation(t *testing.T, dst string, slides ...SlideSpec) {
	t.Helper()
	if err := os.WriteFile(dst, BuildPresentation(t, slides...), 0o644); err != nil {
		t.Fatal(err)
	}
}

// BuildPresentation returns the bytes of a synthetic .pptx package.
func BuildPresentation(t *testing.T, slides ...SlideSpec) []byte {
	t.Helper()
	return buildPresentation(t, false, slides...)
}

// BuildBrandedPresentation is BuildPresentation with a logo image referenced
// from the slide master, the way corporate template decks carry one.
func BuildBrandedPresentation(t *testing.T, slides ...SlideSpec) []byte {
	t.Helper()
	return buildPresentation(t, true, slides...)
}

func buildPresentation(t *testing.T, masterLogo bool, slides ...SlideSpec) []byte {
	t.Helper()

	parts := map[string][]byte{}

	// Package plumbing.
	parts["_rels/.rels"] = []byte(fmt.Sprintf(
		`<Relationships xmlns="%s"><Relationship Id="rId1" Type="%s/officeDocument" Target="ppt/presentation.xml"/></Relationships>`,
		relNS, relPre))
	parts["docProps/thumbnail.jpeg"] = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}

	// Scaffolding: theme, master, layout.
	parts["ppt/theme/theme1.xml"] = []byte(fmt.Sprintf(`<a:theme xmlns:a="%s" name="Office"/>`, nsA))
	parts["ppt/slideMasters/slideMaster1.xml"] = []byte(fmt.Sprintf(
		`<p:sldMaster xmlns:p="%s" xmlns:a="%s"><p:cSld><p:spTree/></p:cSld></p:sldMaster>`, nsP, nsA))
	masterRels := fmt.Sprintf(
		`<Relationship Id="rId1" Type="%s/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
			`<Relationship Id="rId2" Type="%s/theme" Target="../theme/theme1.xml"/>`, relPre, relPre)
	if masterLogo {
		parts["ppt/media/masterlogo.png"] = pngBytes
		masterRels += fmt.Sprintf(
			`<Relationship Id="rId3" Type="%s/image" Target="../media/masterlogo.png"/>`, relPre)
	}
	parts["ppt/slideMasters/_rels/slideMaster1.xml.rels"] = []byte(fmt.Sprintf(
		`<Relationships xmlns="%s">%s</Relationships>`, relNS, masterRels))
	parts["ppt/slideLayouts/slideLayout1.xml"] = []byte(fmt.Sprintf(
		`<p:sldLayout xmlns:p="%s" xmlns:a="%s"><p:cSld><p:spTree/></p:cSld></p:sldLayout>`, nsP, nsA))
	parts["ppt/slideLayouts/_rels/slideLayout1.xml.rels"] = []byte(fmt.Sprintf(
		`<Relationships xmlns="%s"><Relationship Id="rId1" Type="%s/slideMaster" Target="../slideMasters/slideMaster1.xml"/></Relationships>`,
		relNS, relPre))

	// Slides.
	var presRels bytes.Buffer
	fmt.Fprintf(&presRels, `<Relationships xmlns="%s">`, relNS)
	fmt.Fprintf(&presRels, `<Relationship Id="rIdM" Type="%s/slideMaster" Target="slideMasters/slideMaster1.xml"/>`, relPre)

	var sldIdLst bytes.Buffer
	mediaN := 0
	chartN := 0
	var overrides bytes.Buffer

	for i, spec := range slides {
		n := i + 1
		slidePart := fmt.Sprintf("ppt/slides/slide%d.xml", n)

		var body bytes.Buffer
		fmt.Fprintf(&body, `<p:sld xmlns:p="%s" xmlns:a="%s" xmlns:r="%s"><p:cSld><p:spTree>`, nsP, nsA, nsR)
		fmt.Fprintf(&body,
			`<p:sp><p:nvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>`+
				`<p:spPr><a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm></p:spPr>`+
				`<p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, spec.Title)

		var rels bytes.Buffer
		fmt.Fprintf(&rels, `<Relationships xmlns="%s">`, relNS)
		fmt.Fprintf(&rels, `<Relationship Id="rId1" Type="%s/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`, relPre)
		relN := 1

		for img := 0; img < spec.Images; img++ {
			mediaN++
			relN++
			mediaPart := fmt.Sprintf("ppt/media/image%d.png", mediaN)
			parts[mediaPart] = pngBytes
			fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s/image" Target="../media/image%d.png"/>`, relN, relPre, mediaN)
			fmt.Fprintf(&body,
				`<p:pic><p:blipFill><a:blip r:embed="rId%d"/></p:blipFill>`+
					`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="914400" cy="685800"/></a:xfrm></p:spPr></p:pic>`,
				relN, 914400*(img+1), 457200)
		}

		if spec.Chart {
			chartN++
			relN++
			chartPart := fmt.Sprintf("ppt/charts/chart%d.xml", chartN)
			parts[chartPart] = []byte(fmt.Sprintf(`<c:chartSpace xmlns:c="%s"/>`, nsC))
			fmt.Fprintf(&overrides,
				`<Override PartName="/%s" ContentType="application/vnd.openxmlformats-officedocument.drawingml.chart+xml"/>`,
				chartPart)
			fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s/chart" Target="../charts/chart%d.xml"/>`, relN, relPre, chartN)
			fmt.Fprintf(&body,
				`<p:graphicFrame><p:xfrm><a:off x="5486400" y="1600200"/><a:ext cx="4572000" cy="3200400"/></p:xfrm>`+
					`<a:graphic><a:graphicData uri="%s"><c:chart xmlns:c="%s" r:id="rId%d"/></a:graphicData></a:graphic></p:graphicFrame>`,
				nsC, nsC, relN)
		}

		if spec.GroupedImages > 0 {
			// Group at (1828800, 914400) whose child space starts at
			// (914400, 457200) and is twice the rendered extent, so child
			// coordinates are halved and shifted when mapped to the slide.
			body.WriteString(
				`<p:grpSp><p:grpSpPr><a:xfrm>` +
					`<a:off x="1828800" y="914400"/><a:ext cx="2743200" cy="1828800"/>` +
					`<a:chOff x="914400" y="457200"/><a:chExt cx="5486400" cy="3657600"/>` +
					`</a:xfrm></p:grpSpPr>`)
			for img := 0; img < spec.GroupedImages; img++ {
				mediaN++
				relN++
				mediaPart := fmt.Sprintf("ppt/media/image%d.png", mediaN)
				parts[mediaPart] = pngBytes
				fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s/image" Target="../media/image%d.png"/>`, relN, relPre, mediaN)
				fmt.Fprintf(&body,
					`<p:pic><p:blipFill><a:blip r:embed="rId%d"/></p:blipFill>`+
						`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="914400" cy="685800"/></a:xfrm></p:spPr></p:pic>`,
					relN, 914400*(img+1), 457200)
			}
			body.WriteString(`</p:grpSp>`)
		}

		body.WriteString(`</p:spTree></p:cSld></p:sld>`)
		rels.WriteString(`</Relationships>`)

		parts[slidePart] = body.Bytes()
		parts[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n)] = rels.Bytes()

		fmt.Fprintf(&presRels, `<Relationship Id="rId%d" Type="%s/slide" Target="slides/slide%d.xml"/>`, 100+n, relPre, n)
		fmt.Fprintf(&sldIdLst, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 100+n)
		fmt.Fprintf(&overrides,
			`<Override PartName="/%s" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`,
			slidePart)
	}
	presRels.WriteString(`</Relationships>`)

	parts["ppt/presentation.xml"] = []byte(fmt.Sprintf(
		`<p:presentation xmlns:p="%s" xmlns:r="%s">`+
			`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rIdM"/></p:sldMasterIdLst>`+
			`<p:sldIdLst>%s</p:sldIdLst>`+
			`<p:sldSz cx="12192000" cy="6858000"/>`+
			`</p:presentation>`, nsP, nsR, sldIdLst.String()))
	parts["ppt/_rels/presentation.xml.rels"] = presRels.Bytes()

	parts["[Content_Types].xml"] = []byte(fmt.Sprintf(
		`<Types xmlns="%s">`+
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
			`<Default Extension="xml" ContentType="application/xml"/>`+
			`<Default Extension="png" ContentType="image/png"/>`+
			`<Default Extension="jpeg" ContentType="image/jpeg"/>`+
			`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`+
			`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`+
			`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`+
			`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`+
			`%s</Types>`, ctNS, overrides.String()))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
