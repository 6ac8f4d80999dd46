// Package assembly exports user-curated slide sets as new .pptx packages.
// Selected slide parts are copied out of their source packages together with
// everything they reference (media, charts, embeddings), parts are renumbered
// to avoid collisions, and a fresh presentation part stitches them together
// over the first source's masters, layouts, and theme.
package assembly

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/library"
	"github.com/starford/slideman/internal/pptx"
	"github.com/starford/slideman/internal/store"
)

// ExportsDir is the library-relative directory exports are written to.
// It is dot-prefixed so library listings and the watcher skip it.
const ExportsDir = ".exports"

const (
	relNS     = "http://schemas.openxmlformats.org/package/2006/relationships"
	ctNS      = "http://schemas.openxmlformats.org/package/2006/content-types"
	presNS    = "http://schemas.openxmlformats.org/presentationml/2006/main"
	officeRel = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// Exporter builds presentation files from assemblies.
type Exporter struct {
	db  *store.DB
	lib library.Provider
}

// NewExporter creates an exporter.
func NewExporter(db *store.DB, lib library.Provider) *Exporter {
	return &Exporter{db: db, lib: lib}
}

// Export writes the assembly's slides, in order, to a new .pptx under the
// exports directory and returns its library-relative path.
func (e *Exporter) Export(ctx context.Context, assemblyID int64) (string, error) {
	a, err := e.db.GetAssembly(assemblyID)
	if err != nil {
		return "", err
	}
	if len(a.SlideIDs) == 0 {
		return "", fmt.Errorf("assembly: %q has no slides: %w", a.Name, apperr.ErrConflict)
	}
	sources, err := e.db.SlideSources(a.SlideIDs)
	if err != nil {
		return "", err
	}

	// Open each source package once.
	pkgs := make(map[string]*pptx.Package)
	defer func() {
		for _, p := range pkgs {
			p.Close()
		}
	}()
	for _, src := range sources {
		if _, ok := pkgs[src.RelPath]; ok {
			continue
		}
		abs, err := e.lib.Abs(src.RelPath)
		if err != nil {
			return "", err
		}
		pkg, err := pptx.OpenPackage(abs)
		if err != nil {
			return "", err
		}
		pkgs[src.RelPath] = pkg
	}

	b := newBuilder()
	first := pkgs[sources[0].RelPath]
	if err := b.copyScaffolding(first); err != nil {
		return "", err
	}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pkg := pkgs[src.RelPath]
		if err := b.addSlide(pkg, src.SlideIndex, i+1); err != nil {
			return "", fmt.Errorf("assembly: slide %d of %s: %w", src.SlideIndex, src.RelPath, err)
		}
	}

	if err := b.finish(first); err != nil {
		return "", err
	}

	data, err := b.zip()
	if err != nil {
		return "", err
	}
	outRel := path.Join(ExportsDir, fmt.Sprintf("%s-%s.pptx", slug(a.Name), uuid.NewString()))
	if err := e.lib.Write(outRel, data); err != nil {
		return "", err
	}
	return outRel, nil
}

func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteByte('-')
		}
	}
	if sb.Len() == 0 {
		return "assembly"
	}
	return sb.String()
}

// builder accumulates output parts.
type builder struct {
	parts      map[string][]byte
	slideParts []string          // output slide part names in order
	counters   map[string]int    // output dir → next part number
	copied     map[string]string // srcPkgPath|srcPart → output part name
	layoutPart string            // layout slides from foreign packages point to
}

func newBuilder() *builder {
	return &builder{
		parts:    make(map[string][]byte),
		counters: make(map[string]int),
		copied:   make(map[string]string),
	}
}

// copyScaffolding copies masters, layouts, and theme from the first source
// package. Their relationship parts are rewritten rather than copied: media
// the scaffolding references (logos, background images) must travel into the
// output too, or the rels would point at parts that do not exist.
func (b *builder) copyScaffolding(pkg *pptx.Package) error {
	prefixes := []string{"ppt/slideMasters/", "ppt/slideLayouts/", "ppt/theme/"}
	var names []string
	for _, prefix := range prefixes {
		for _, name := range pkg.PartNames(prefix) {
			if strings.Contains(name, "_rels/") {
				continue
			}
			data, err := pkg.Part(name)
			if err != nil {
				return err
			}
			b.parts[name] = data
			// Scaffolding keeps its source names; registering it up front
			// makes rels between masters, layouts, and theme resolve to the
			// copies instead of duplicating them.
			b.copied[pkg.Path()+"|"+name] = name
			names = append(names, name)
		}
	}

	for _, name := range names {
		rels, err := pkg.Relationships(name)
		if err != nil {
			return err
		}
		var outRels []pptx.Relationship
		for _, r := range rels {
			if isExternal(r.Target) {
				outRels = append(outRels, r)
				continue
			}
			srcTarget := pptx.ResolveTarget(name, r.Target)
			copiedPart, err := b.copyReferenced(pkg, srcTarget)
			if err != nil {
				return err
			}
			outRels = append(outRels, pptx.Relationship{
				ID: r.ID, Type: r.Type, Target: relTarget(name, copiedPart),
			})
		}
		if len(outRels) > 0 {
			b.parts[pptx.RelsPathFor(name)] = marshalRels(outRels)
		}
	}

	layouts := partList(b.parts, "ppt/slideLayouts/")
	if len(layouts) == 0 {
		return fmt.Errorf("assembly: source package has no slide layouts")
	}
	b.layoutPart = layouts[0]
	return nil
}

// addSlide copies one slide part (and its referenced parts) from pkg into
// the output as ppt/slides/slideN.xml.
func (b *builder) addSlide(pkg *pptx.Package, slideIndex, outNumber int) error {
	srcSlides, err := pkg.SlideParts()
	if err != nil {
		return err
	}
	if slideIndex < 0 || slideIndex >= len(srcSlides) {
		return fmt.Errorf("slide index %d out of range (%d slides)", slideIndex, len(srcSlides))
	}
	srcPart := srcSlides[slideIndex]
	outPart := fmt.Sprintf("ppt/slides/slide%d.xml", outNumber)

	data, err := pkg.Part(srcPart)
	if err != nil {
		return err
	}
	b.parts[outPart] = data
	b.slideParts = append(b.slideParts, outPart)

	rels, err := pkg.Relationships(srcPart)
	if err != nil {
		return err
	}

	var outRels []pptx.Relationship
	for _, r := range rels {
		switch {
		case strings.HasSuffix(r.Type, "/slideLayout"):
			// Slides from the scaffolding package keep their own layout;
			// foreign slides are re-pointed at the first copied layout.
			target := pptx.ResolveTarget(srcPart, r.Target)
			if _, ok := b.parts[target]; !ok {
				target = b.layoutPart
			}
			outRels = append(outRels, pptx.Relationship{
				ID: r.ID, Type: r.Type, Target: relTarget(outPart, target),
			})

		case strings.HasSuffix(r.Type, "/notesSlide"):
			// Notes are not carried into exports.

		case isExternal(r.Target):
			outRels = append(outRels, r)

		default:
			srcTarget := pptx.ResolveTarget(srcPart, r.Target)
			copiedPart, err := b.copyReferenced(pkg, srcTarget)
			if err != nil {
				return err
			}
			outRels = append(outRels, pptx.Relationship{
				ID: r.ID, Type: r.Type, Target: relTarget(outPart, copiedPart),
			})
		}
	}
	if len(outRels) > 0 {
		b.parts[pptx.RelsPathFor(outPart)] = marshalRels(outRels)
	}
	return nil
}

// copyReferenced copies a referenced part (media, chart, embedding, ...)
// into the output under a fresh numbered name, recursing into the part's own
// relationships. Parts already copied from the same package are reused.
func (b *builder) copyReferenced(pkg *pptx.Package, srcPart string) (string, error) {
	key := pkg.Path() + "|" + srcPart
	if out, ok := b.copied[key]; ok {
		return out, nil
	}

	data, err := pkg.Part(srcPart)
	if err != nil {
		return "", err
	}

	dir := path.Dir(srcPart)
	ext := path.Ext(srcPart)
	stem := strings.TrimRight(strings.TrimSuffix(path.Base(srcPart), ext), "0123456789")
	b.counters[dir]++
	outPart := fmt.Sprintf("%s/%s%d%s", dir, stem, b.counters[dir], ext)

	b.parts[outPart] = data
	b.copied[key] = outPart

	rels, err := pkg.Relationships(srcPart)
	if err != nil {
		return "", err
	}
	var outRels []pptx.Relationship
	for _, r := range rels {
		if isExternal(r.Target) {
			outRels = append(outRels, r)
			continue
		}
		srcTarget := pptx.ResolveTarget(srcPart, r.Target)
		copiedPart, err := b.copyReferenced(pkg, srcTarget)
		if err != nil {
			return "", err
		}
		outRels = append(outRels, pptx.Relationship{
			ID: r.ID, Type: r.Type, Target: relTarget(outPart, copiedPart),
		})
	}
	if len(outRels) > 0 {
		b.parts[pptx.RelsPathFor(outPart)] = marshalRels(outRels)
	}
	return outPart, nil
}

// finish writes the presentation part, its relationships, the package rels,
// and [Content_Types].xml.
func (b *builder) finish(first *pptx.Package) error {
	masters := partList(b.parts, "ppt/slideMasters/")
	if len(masters) == 0 {
		return fmt.Errorf("assembly: no slide masters copied")
	}

	cx, cy := slideSize(first)

	var rels []pptx.Relationship
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<p:presentation xmlns:p="` + presNS + `" xmlns:r="` + officeRel + `">`)

	sb.WriteString(`<p:sldMasterIdLst>`)
	rid := 1
	for i, m := range masters {
		id := fmt.Sprintf("rId%d", rid)
		rels = append(rels, pptx.Relationship{
			ID:     id,
			Type:   officeRel + "/slideMaster",
			Target: relTarget("ppt/presentation.xml", m),
		})
		fmt.Fprintf(&sb, `<p:sldMasterId id="%d" r:id="%s"/>`, 2147483648+i, id)
		rid++
	}
	sb.WriteString(`</p:sldMasterIdLst>`)

	sb.WriteString(`<p:sldIdLst>`)
	for i, s := range b.slideParts {
		id := fmt.Sprintf("rId%d", rid)
		rels = append(rels, pptx.Relationship{
			ID:     id,
			Type:   officeRel + "/slide",
			Target: relTarget("ppt/presentation.xml", s),
		})
		fmt.Fprintf(&sb, `<p:sldId id="%d" r:id="%s"/>`, 256+i, id)
		rid++
	}
	sb.WriteString(`</p:sldIdLst>`)

	fmt.Fprintf(&sb, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="%d" cy="%d"/>`, cx, cy, cy, cx)
	sb.WriteString(`</p:presentation>`)

	b.parts["ppt/presentation.xml"] = []byte(sb.String())
	b.parts["ppt/_rels/presentation.xml.rels"] = marshalRels(rels)
	b.parts["_rels/.rels"] = marshalRels([]pptx.Relationship{{
		ID:     "rId1",
		Type:   officeRel + "/officeDocument",
		Target: "ppt/presentation.xml",
	}})
	b.parts["[Content_Types].xml"] = b.contentTypes()
	return nil
}

// zip serializes all parts into a .pptx archive.
func (b *builder) zip() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	names := make([]string, 0, len(b.parts))
	for name := range b.parts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("assembly: zip create %s: %w", name, err)
		}
		if _, err := w.Write(b.parts[name]); err != nil {
			return nil, fmt.Errorf("assembly: zip write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("assembly: zip close: %w", err)
	}
	return buf.Bytes(), nil
}

// xmlOverrides maps part directories to their OOXML content types.
var xmlOverrides = map[string]string{
	"ppt":              "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml",
	"ppt/slides":       "application/vnd.openxmlformats-officedocument.presentationml.slide+xml",
	"ppt/slideMasters": "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml",
	"ppt/slideLayouts": "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml",
	"ppt/theme":        "application/vnd.openxmlformats-officedocument.theme+xml",
	"ppt/charts":       "application/vnd.openxmlformats-officedocument.drawingml.chart+xml",
}

var extDefaults = map[string]string{
	"rels": "application/vnd.openxmlformats-package.relationships+xml",
	"xml":  "application/xml",
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"bin":  "application/vnd.openxmlformats-officedocument.oleObject",
}

func (b *builder) contentTypes() []byte {
	exts := map[string]string{"rels": extDefaults["rels"], "xml": extDefaults["xml"]}
	var overrides []string

	names := make([]string, 0, len(b.parts))
	for name := range b.parts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.Contains(name, "_rels/") || name == "[Content_Types].xml" {
			continue
		}
		if strings.HasSuffix(name, ".xml") {
			if ct, ok := xmlOverrides[path.Dir(name)]; ok {
				overrides = append(overrides,
					fmt.Sprintf(`<Override PartName="/%s" ContentType="%s"/>`, name, ct))
				continue
			}
		}
		ext := strings.TrimPrefix(path.Ext(name), ".")
		if ct, ok := extDefaults[strings.ToLower(ext)]; ok {
			exts[strings.ToLower(ext)] = ct
		} else if ext != "" {
			exts[strings.ToLower(ext)] = "application/octet-stream"
		}
	}

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Types xmlns="` + ctNS + `">`)
	extNames := make([]string, 0, len(exts))
	for e := range exts {
		extNames = append(extNames, e)
	}
	sort.Strings(extNames)
	for _, e := range extNames {
		fmt.Fprintf(&sb, `<Default Extension="%s" ContentType="%s"/>`, e, exts[e])
	}
	for _, o := range overrides {
		sb.WriteString(o)
	}
	sb.WriteString(`</Types>`)
	return []byte(sb.String())
}

// slideSize reads the slide size of the source presentation, falling back to
// 16:9 defaults.
func slideSize(pkg *pptx.Package) (int64, int64) {
	type sldSz struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	}
	type pres struct {
		SldSz sldSz `xml:"sldSz"`
	}
	data, err := pkg.Part("ppt/presentation.xml")
	if err != nil {
		return 12192000, 6858000
	}
	var p pres
	if err := xml.Unmarshal(data, &p); err != nil || p.SldSz.Cx == 0 || p.SldSz.Cy == 0 {
		return 12192000, 6858000
	}
	return p.SldSz.Cx, p.SldSz.Cy
}

func marshalRels(rels []pptx.Relationship) []byte {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Relationships xmlns="` + relNS + `">`)
	for _, r := range rels {
		if isExternal(r.Target) {
			fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s" TargetMode="External"/>`,
				xmlEscape(r.ID), xmlEscape(r.Type), xmlEscape(r.Target))
			continue
		}
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`,
			xmlEscape(r.ID), xmlEscape(r.Type), xmlEscape(r.Target))
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func isExternal(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:")
}

// relTarget computes the relative relationship target from one part to another.
func relTarget(fromPart, toPart string) string {
	fromDir := strings.Split(path.Dir(fromPart), "/")
	to := strings.Split(toPart, "/")

	common := 0
	for common < len(fromDir) && common < len(to)-1 && fromDir[common] == to[common] {
		common++
	}
	var out []string
	for i := common; i < len(fromDir); i++ {
		out = append(out, "..")
	}
	out = append(out, to[common:]...)
	return strings.Join(out, "/")
}

func partList(parts map[string][]byte, prefix string) []string {
	var out []string
	for name := range parts {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".xml") &&
			!strings.Contains(name, "_rels/") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
