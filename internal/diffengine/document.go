package diffengine

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// element is one addressable unit of a document's canonical text
// representation: a paragraph, a worksheet, a slide, or a PDF page.
type element struct {
	name string
	text string
}

const elementMarkerPrefix = "\x00ELEMENT:"
const elementMarkerSuffix = "\x00"

// DocumentStrategy extracts a canonical textual representation per
// element-family (paragraphs for .docx, worksheets for .xlsx, slides for
// .pptx, pages for .pdf), flattens both versions into one marked-up text
// stream, runs the Text strategy's line diff over it, then regroups the
// resulting entries by the element each falls within. The per-family
// extractor choice is an explicit decision: .docx -> nguyenthenguyen/docx,
// .xlsx -> xuri/excelize/v2, .pptx -> the standard library's archive/zip
// and encoding/xml applied directly to slide XML (excelize's own surface is
// sheet-shaped, not slide-shaped), .pdf -> ledongthuc/pdf.
type DocumentStrategy struct{}

func (DocumentStrategy) Generate(oldPath, newPath string, isInitial bool) (*Result, error) {
	oldElements, err := extractElements(oldPath)
	if err != nil {
		return nil, fmt.Errorf("diffengine: extracting %s: %w", oldPath, err)
	}

	newElements, err := extractElements(newPath)
	if err != nil {
		return nil, fmt.Errorf("diffengine: extracting %s: %w", newPath, err)
	}

	oldFlat := flattenElements(oldElements)
	newFlat := flattenElements(newElements)

	entries := diffLines(oldFlat, newFlat)
	groups := regroupByElement(entries)

	changed := false

	for _, g := range groups {
		for _, e := range g.Changes {
			if e.Tag != TagUnchanged {
				changed = true
			}
		}
	}

	return &Result{
		FileType:  KindDocument,
		IsChanged: changed,
		IsInitial: isInitial,
		Document:  &DocumentResult{Elements: groups},
	}, nil
}

// extractElements dispatches to the per-extension extractor. An empty or
// missing path (the "no old version yet" case for an initial diff) yields
// no elements.
func extractElements(path string) ([]element, error) {
	if path == "" {
		return nil, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return extractDocx(path)
	case ".xlsx":
		return extractXlsx(path)
	case ".pptx":
		return extractPptx(path)
	case ".pdf":
		return extractPDF(path)
	default:
		return nil, fmt.Errorf("diffengine: no document extractor for %s", path)
	}
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func extractDocx(path string) ([]element, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()

	paragraphs := strings.Split(content, "</w:p>")

	var out []element

	for i, raw := range paragraphs {
		text := strings.TrimSpace(xmlTagPattern.ReplaceAllString(raw, ""))
		if text == "" {
			continue
		}

		out = append(out, element{name: fmt.Sprintf("paragraph %d", i+1), text: text})
	}

	return out, nil
}

func extractXlsx(path string) ([]element, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []element

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}

		out = append(out, element{name: "sheet " + sheet, text: strings.Join(lines, "\n")})
	}

	return out, nil
}

var slideFileNumber = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPptx(path string) ([]element, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	type slideFile struct {
		n    int
		file *zip.File
	}

	var slides []slideFile

	for _, f := range zr.File {
		m := slideFileNumber.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}

		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		slides = append(slides, slideFile{n: n, file: f})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var out []element

	for _, s := range slides {
		text, err := extractSlideText(s.file)
		if err != nil {
			return nil, fmt.Errorf("reading slide %d: %w", s.n, err)
		}

		out = append(out, element{name: fmt.Sprintf("slide %d", s.n), text: text})
	}

	return out, nil
}

// extractSlideText walks the slide XML's token stream and collects the
// character data inside every <a:t> text-run element, regardless of
// namespace prefix.
func extractSlideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)

	var (
		b      strings.Builder
		inText bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}

		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}

func extractPDF(path string) ([]element, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []element

	total := r.NumPage()

	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}

		out = append(out, element{name: fmt.Sprintf("page %d", i), text: text})
	}

	return out, nil
}

func flattenElements(elements []element) string {
	var sb strings.Builder

	for _, el := range elements {
		sb.WriteString(elementMarkerPrefix)
		sb.WriteString(el.name)
		sb.WriteString(elementMarkerSuffix)
		sb.WriteString("\n")
		sb.WriteString(el.text)

		if !strings.HasSuffix(el.text, "\n") {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func parseMarker(text string) (string, bool) {
	trimmed := strings.TrimSuffix(text, "\n")
	if !strings.HasPrefix(trimmed, elementMarkerPrefix) || !strings.HasSuffix(trimmed, elementMarkerSuffix) {
		return "", false
	}

	name := strings.TrimSuffix(strings.TrimPrefix(trimmed, elementMarkerPrefix), elementMarkerSuffix)

	return name, true
}

// regroupByElement splits the flattened diff back into per-element
// groups, using the marker lines laid down by flattenElements to track
// which element subsequent entries belong to.
func regroupByElement(entries []LineChange) []ElementChange {
	var groups []ElementChange

	current := "preamble"

	for _, e := range entries {
		text := e.Original
		if text == "" {
			text = e.Modified
		}

		if name, ok := parseMarker(text); ok {
			current = name
			continue
		}

		if len(groups) == 0 || groups[len(groups)-1].Element != current {
			groups = append(groups, ElementChange{Element: current})
		}

		groups[len(groups)-1].Changes = append(groups[len(groups)-1].Changes, e)
	}

	return groups
}
