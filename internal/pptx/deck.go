package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Element kinds detected on slides.
const (
	ElementText    = "text"
	ElementImage   = "image"
	ElementChart   = "chart"
	ElementTable   = "table"
	ElementGraphic = "graphic"
)

// Element is a shape on a slide with its bounding box in EMU.
type Element struct {
	Kind string
	X    int64
	Y    int64
	W    int64
	H    int64
}

// Slide is one parsed slide.
type Slide struct {
	Index    int
	Title    string
	Elements []Element
}

// Deck is the parsed structure of a presentation.
type Deck struct {
	Slides []Slide
}

// Deck parses every slide part in presentation order.
func (p *Package) Deck() (*Deck, error) {
	parts, err := p.SlideParts()
	if err != nil {
		return nil, err
	}
	deck := &Deck{Slides: make([]Slide, 0, len(parts))}
	for i, part := range parts {
		data, err := p.Part(part)
		if err != nil {
			return nil, err
		}
		title, elements, err := parseSlide(data)
		if err != nil {
			return nil, fmt.Errorf("pptx: parse %s: %w", part, err)
		}
		deck.Slides = append(deck.Slides, Slide{Index: i, Title: title, Elements: elements})
	}
	return deck, nil
}

// shapeState tracks one open shape while scanning slide XML.
type shapeState struct {
	kind       string
	x, y, w, h int64
	hasOff     bool
	hasExt     bool
	isTitle    bool
	graphicURI string
	text       strings.Builder
}

// groupState tracks one open p:grpSp. Children carry coordinates in the
// group's child space (a:chOff / a:chExt); apply maps a child box into the
// group's parent space.
type groupState struct {
	offX, offY       int64
	extCx, extCy     int64
	chOffX, chOffY   int64
	chExtCx, chExtCy int64
	hasOff           bool
	hasExt           bool
}

func (g *groupState) apply(e Element) Element {
	e.X = g.offX + scaleEMU(e.X-g.chOffX, g.extCx, g.chExtCx)
	e.Y = g.offY + scaleEMU(e.Y-g.chOffY, g.extCy, g.chExtCy)
	e.W = scaleEMU(e.W, g.extCx, g.chExtCx)
	e.H = scaleEMU(e.H, g.extCy, g.chExtCy)
	return e
}

// scaleEMU rescales v by ext/chExt. A missing or degenerate child extent
// means no scaling.
func scaleEMU(v, ext, chExt int64) int64 {
	if ext == 0 || chExt == 0 || ext == chExt {
		return v
	}
	return v * ext / chExt
}

// parseSlide walks the slide's DrawingML and extracts the title placeholder
// text plus every shape's kind and bounding box (a:off / a:ext, in EMU).
// Shapes inside p:grpSp are mapped back to absolute slide coordinates through
// the enclosing group transforms. Namespaces are matched by local name only:
// slide parts always use the standard p:/a: vocabularies and matching loosely
// keeps the scanner robust.
func parseSlide(data []byte) (string, []Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		title    string
		elements []Element
		stack    []*shapeState
		groups   []*groupState
		inText   bool
	)
	top := func() *shapeState {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	topGroup := func() *groupState {
		if len(groups) == 0 {
			return nil
		}
		return groups[len(groups)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				stack = append(stack, &shapeState{kind: ElementText})
			case "pic":
				stack = append(stack, &shapeState{kind: ElementImage})
			case "graphicFrame":
				stack = append(stack, &shapeState{kind: ElementGraphic})
			case "grpSp":
				groups = append(groups, &groupState{})
			case "ph":
				if s := top(); s != nil {
					for _, attr := range t.Attr {
						if attr.Name.Local == "type" && (attr.Value == "title" || attr.Value == "ctrTitle") {
							s.isTitle = true
						}
					}
				}
			case "off":
				// Before any child shape opens, a:off inside p:grpSpPr
				// positions the group itself.
				if s := top(); s != nil && !s.hasOff {
					s.x = emuAttr(t.Attr, "x")
					s.y = emuAttr(t.Attr, "y")
					s.hasOff = true
				} else if g := topGroup(); s == nil && g != nil && !g.hasOff {
					g.offX = emuAttr(t.Attr, "x")
					g.offY = emuAttr(t.Attr, "y")
					g.hasOff = true
				}
			case "ext":
				if s := top(); s != nil && !s.hasExt {
					s.w = emuAttr(t.Attr, "cx")
					s.h = emuAttr(t.Attr, "cy")
					s.hasExt = true
				} else if g := topGroup(); s == nil && g != nil && !g.hasExt {
					g.extCx = emuAttr(t.Attr, "cx")
					g.extCy = emuAttr(t.Attr, "cy")
					g.hasExt = true
				}
			case "chOff":
				if g := topGroup(); g != nil {
					g.chOffX = emuAttr(t.Attr, "x")
					g.chOffY = emuAttr(t.Attr, "y")
				}
			case "chExt":
				if g := topGroup(); g != nil {
					g.chExtCx = emuAttr(t.Attr, "cx")
					g.chExtCy = emuAttr(t.Attr, "cy")
				}
			case "graphicData":
				if s := top(); s != nil {
					for _, attr := range t.Attr {
						if attr.Name.Local == "uri" {
							s.graphicURI = attr.Value
						}
					}
				}
			case "t":
				inText = true
			}

		case xml.CharData:
			if inText {
				if s := top(); s != nil && s.isTitle {
					s.text.Write(t)
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "grpSp":
				if len(groups) > 0 {
					groups = groups[:len(groups)-1]
				}
			case "sp", "pic", "graphicFrame":
				s := top()
				if s == nil {
					continue
				}
				stack = stack[:len(stack)-1]

				kind := s.kind
				if kind == ElementGraphic {
					switch {
					case strings.HasSuffix(s.graphicURI, "/chart"):
						kind = ElementChart
					case strings.HasSuffix(s.graphicURI, "/table"):
						kind = ElementTable
					}
				}
				el := Element{Kind: kind, X: s.x, Y: s.y, W: s.w, H: s.h}
				// Innermost group first: each transform lands the box in the
				// next group out's child space.
				for i := len(groups) - 1; i >= 0; i-- {
					el = groups[i].apply(el)
				}
				elements = append(elements, el)

				if s.isTitle && title == "" {
					title = strings.TrimSpace(s.text.String())
				}
			}
		}
	}
	return title, elements, nil
}

func emuAttr(attrs []xml.Attr, name string) int64 {
	for _, a := range attrs {
		if a.Name.Local == name {
			v, err := strconv.ParseInt(a.Value, 10, 64)
			if err == nil {
				return v
			}
		}
	}
	return 0
}
