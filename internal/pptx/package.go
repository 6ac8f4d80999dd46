// Package pptx reads and inspects PowerPoint (.pptx) packages. A .pptx file
// is a ZIP of XML parts; slide order comes from presentation.xml and its
// relationships, shape geometry from each slide part's DrawingML.
package pptx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

const (
	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"
	thumbnailPrefix  = "docProps/thumbnail"
)

// Relationship is one entry of an OPC relationships part.
type Relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type relationshipsXML struct {
	Rels []Relationship `xml:"Relationship"`
}

// Package is an open .pptx archive.
type Package struct {
	path  string
	zr    *zip.ReadCloser
	parts map[string]*zip.File
}

// OpenPackage opens the .pptx file at path.
func OpenPackage(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("pptx: open %s: %w", path, err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	return &Package{path: path, zr: zr, parts: parts}, nil
}

// Close releases the underlying archive.
func (p *Package) Close() error {
	return p.zr.Close()
}

// Path returns the file path the package was opened from.
func (p *Package) Path() string {
	return p.path
}

// HasPart reports whether the package contains the named part.
func (p *Package) HasPart(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Part returns the raw bytes of the named part.
func (p *Package) Part(name string) ([]byte, error) {
	f, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("pptx: part %s not in %s", name, p.path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("pptx: open part %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("pptx: read part %s: %w", name, err)
	}
	return data, nil
}

// PartNames returns every part name with the given prefix, sorted.
func (p *Package) PartNames(prefix string) []string {
	var out []string
	for name := range p.parts {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Relationships parses the relationships part belonging to partName
// (for example ppt/slides/slide1.xml → ppt/slides/_rels/slide1.xml.rels).
// A missing rels part yields an empty list.
func (p *Package) Relationships(partName string) ([]Relationship, error) {
	relsName := RelsPathFor(partName)
	if !p.HasPart(relsName) {
		return nil, nil
	}
	data, err := p.Part(relsName)
	if err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("pptx: parse %s: %w", relsName, err)
	}
	return rels.Rels, nil
}

// RelsPathFor returns the conventional relationships part name for partName.
func RelsPathFor(partName string) string {
	dir, base := path.Split(partName)
	return dir + "_rels/" + base + ".rels"
}

// ResolveTarget resolves a relationship target (possibly with ../ segments)
// against the directory of the source part.
func ResolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(sourcePart), target)
}

// SlideParts returns the slide part names in presentation order. When the
// presentation part or its relationships are unreadable it falls back to
// lexical order of ppt/slides/slide*.xml.
func (p *Package) SlideParts() ([]string, error) {
	fallback := func() []string {
		var out []string
		for _, name := range p.PartNames("ppt/slides/") {
			if strings.HasSuffix(name, ".xml") && !strings.Contains(name, "_rels") {
				out = append(out, name)
			}
		}
		sortSlideParts(out)
		return out
	}

	rels, err := p.Relationships(presentationPart)
	if err != nil || len(rels) == 0 {
		return fallback(), nil
	}
	byID := make(map[string]string, len(rels))
	for _, r := range rels {
		byID[r.ID] = ResolveTarget(presentationPart, r.Target)
	}

	data, err := p.Part(presentationPart)
	if err != nil {
		return fallback(), nil
	}

	var ordered []string
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fallback(), nil
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		// sldId carries two id attributes: a plain numeric id (empty
		// namespace) and r:id referencing the slide part relationship.
		for _, attr := range se.Attr {
			if attr.Name.Local == "id" && strings.Contains(attr.Name.Space, "relationships") {
				if part, ok := byID[attr.Value]; ok {
					ordered = append(ordered, part)
				}
			}
		}
	}
	if len(ordered) == 0 {
		return fallback(), nil
	}
	return ordered, nil
}

// sortSlideParts orders slide part names numerically (slide2 before slide10).
func sortSlideParts(names []string) {
	num := func(name string) int {
		base := strings.TrimSuffix(path.Base(name), ".xml")
		digits := strings.TrimLeft(base, "slide")
		n := 0
		for _, r := range digits {
			if r < '0' || r > '9' {
				return 0
			}
			n = n*10 + int(r-'0')
		}
		return n
	}
	sort.Slice(names, func(i, j int) bool { return num(names[i]) < num(names[j]) })
}

// Thumbnail returns the embedded package thumbnail (docProps/thumbnail.*),
// if any, with its part name.
func (p *Package) Thumbnail() (string, []byte, bool) {
	for name := range p.parts {
		if strings.HasPrefix(name, thumbnailPrefix) {
			data, err := p.Part(name)
			if err != nil {
				return "", nil, false
			}
			return name, data, true
		}
	}
	return "", nil, false
}
