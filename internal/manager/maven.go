package manager

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/probe"
)

const defaultMirrorOf = "central"

// MavenMirror is one <mirror> record of settings.xml.
type MavenMirror struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MirrorOf string `json:"mirrorOf"`
	URL      string `json:"url"`

	latency int64
}

func (m MavenMirror) String() string {
	return fmt.Sprintf("id: %s, name: %s, mirror-of: %s, url: %s", m.ID, m.Name, m.MirrorOf, m.URL)
}

func (m MavenMirror) Endpoint() string { return m.URL }
func (m MavenMirror) Latency() int64   { return m.latency }

func (m MavenMirror) Values() map[string]string {
	return map[string]string{"id": m.ID, "name": m.Name, "mirror-of": m.MirrorOf, "url": m.URL}
}

func (m MavenMirror) withLatency(ms int64) MavenMirror {
	m.latency = ms
	return m
}

func (m MavenMirror) withDefaults() MavenMirror {
	if m.Name == "" {
		m.Name = m.ID
	}
	if m.MirrorOf == "" {
		m.MirrorOf = defaultMirrorOf
	}
	return m
}

// mavenRecord is the on-disk form of a mirror. Children other than the four
// known ones are carried through untouched.
type mavenRecord struct {
	XMLName  xml.Name  `xml:"mirror"`
	ID       string    `xml:"id"`
	Name     string    `xml:"name,omitempty"`
	MirrorOf string    `xml:"mirrorOf,omitempty"`
	URL      string    `xml:"url"`
	Extra    []xmlNode `xml:",any"`
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

type mavenMirrors struct {
	XMLName xml.Name      `xml:"mirrors"`
	Mirrors []mavenRecord `xml:"mirror"`
}

// mavenFormat splices the <mirrors> region of settings.xml and leaves the
// rest of the document text as it was.
type mavenFormat struct{}

func (mavenFormat) fields() []Field {
	return []Field{
		{Name: "id", Usage: "mirror id", Required: true, Key: true},
		{Name: "name", Usage: "mirror name (defaults to the id)"},
		{Name: "mirror-of", Usage: "repositories this mirror serves (default central)"},
		{Name: "url", Usage: "mirror url", Required: true},
	}
}

func (mavenFormat) fromFields(v map[string]string) (MavenMirror, error) {
	m := MavenMirror{
		ID:       v["id"],
		Name:     v["name"],
		MirrorOf: v["mirror-of"],
		URL:      v["url"],
		latency:  probe.Unreachable,
	}
	if m.URL != "" {
		if err := checkURL(m.URL); err != nil {
			return MavenMirror{}, err
		}
	}
	return m.withDefaults(), nil
}

func (mavenFormat) decode(rec json.RawMessage) (MavenMirror, error) {
	var m MavenMirror
	if err := json.Unmarshal(rec, &m); err != nil {
		return MavenMirror{}, fmt.Errorf("decoding maven mirror: %w", err)
	}
	if m.ID == "" {
		return MavenMirror{}, fmt.Errorf("%w: maven mirror without id", ErrInvalidMirror)
	}
	if err := checkURL(m.URL); err != nil {
		return MavenMirror{}, err
	}
	m.latency = probe.Unreachable
	return m.withDefaults(), nil
}

func (mavenFormat) template(m MavenMirror) (string, error) {
	return render("settings.xml.tmpl", m)
}

func (mavenFormat) apply(m MavenMirror, existing string) (string, error) {
	doc, err := locateMirrors(existing)
	if err != nil {
		return "", err
	}
	rec := mavenRecord{ID: m.ID, Name: m.Name, MirrorOf: m.MirrorOf, URL: m.URL}

	if !doc.found {
		return doc.insert(existing, []mavenRecord{rec})
	}

	records, err := doc.records(existing)
	if err != nil {
		return "", err
	}
	next := []mavenRecord{rec}
	for _, r := range records {
		if r.ID != m.ID {
			next = append(next, r)
		}
	}
	return doc.replace(existing, next)
}

func (mavenFormat) current(existing string) (MavenMirror, bool) {
	doc, err := locateMirrors(existing)
	if err != nil || !doc.found {
		return MavenMirror{}, false
	}
	records, err := doc.records(existing)
	if err != nil || len(records) == 0 {
		return MavenMirror{}, false
	}
	r := records[0]
	return MavenMirror{ID: r.ID, Name: r.Name, MirrorOf: r.MirrorOf, URL: r.URL, latency: probe.Unreachable}, true
}

func (mavenFormat) remove(m MavenMirror, existing string) (string, bool, error) {
	doc, err := locateMirrors(existing)
	if err != nil {
		return "", false, err
	}
	if !doc.found {
		return existing, false, nil
	}
	records, err := doc.records(existing)
	if err != nil {
		return "", false, err
	}
	kept := records[:0:0]
	for _, r := range records {
		if r.ID != m.ID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return existing, false, nil
	}
	out, err := doc.replace(existing, kept)
	return out, err == nil, err
}

func (mavenFormat) reset(existing string) (string, bool, error) {
	doc, err := locateMirrors(existing)
	if err != nil {
		return "", false, err
	}
	if !doc.found {
		return existing, false, nil
	}
	records, err := doc.records(existing)
	if err != nil {
		return "", false, err
	}
	if len(records) == 0 {
		return existing, false, nil
	}
	out, err := doc.replace(existing, nil)
	return out, err == nil, err
}

// mirrorsRegion locates the <mirrors> element inside a settings document by
// byte offsets into the original text.
type mirrorsRegion struct {
	found      bool
	start, end int
	// closeRoot is the offset of the root end tag, used when no region exists.
	closeRoot int
}

func locateMirrors(text string) (mirrorsRegion, error) {
	var r mirrorsRegion
	d := xml.NewDecoder(strings.NewReader(text))
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	depth := 0
	rootSeen := false
	for {
		off := int(d.InputOffset())
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r, fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				if t.Name.Local != "settings" {
					return r, fmt.Errorf("%w: root element is <%s>, want <settings>", ErrParse, t.Name.Local)
				}
				rootSeen = true
			}
			if depth == 2 && t.Name.Local == "mirrors" && !r.found {
				if err := d.Skip(); err != nil {
					return r, fmt.Errorf("%w: %v", ErrParse, err)
				}
				r.found = true
				r.start = off
				r.end = int(d.InputOffset())
				depth--
			}
		case xml.EndElement:
			if depth == 1 {
				r.closeRoot = off
			}
			depth--
		}
	}

	if !rootSeen {
		return r, fmt.Errorf("%w: no <settings> element", ErrParse)
	}
	if !r.found && !strings.HasPrefix(text[r.closeRoot:], "</") {
		return r, fmt.Errorf("%w: <settings> has no closing tag", ErrParse)
	}
	return r, nil
}

func (r mirrorsRegion) records(text string) ([]mavenRecord, error) {
	var ms mavenMirrors
	if err := xml.Unmarshal([]byte(text[r.start:r.end]), &ms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return ms.Mirrors, nil
}

// replace swaps the region for records, indented like the original tag.
// Comments directly under <mirrors> are kept ahead of the records.
func (r mirrorsRegion) replace(text string, records []mavenRecord) (string, error) {
	indent := lineIndent(text, r.start)
	comments, err := regionComments(text[r.start:r.end])
	if err != nil {
		return "", err
	}
	body, err := renderMirrors(comments, records, indent, indentUnit(indent))
	if err != nil {
		return "", err
	}
	return text[:r.start] + body + text[r.end:], nil
}

// insert adds a new region as the last child of the root element.
func (r mirrorsRegion) insert(text string, records []mavenRecord) (string, error) {
	at := r.closeRoot
	for at > 0 && (text[at-1] == ' ' || text[at-1] == '\t') {
		at--
	}
	unit := indentUnit(lineIndent(text, r.closeRoot))
	body, err := renderMirrors(nil, records, unit, unit)
	if err != nil {
		return "", err
	}
	lead := ""
	if at > 0 && text[at-1] != '\n' {
		lead = "\n"
	}
	return text[:at] + lead + unit + body + "\n" + text[at:], nil
}

// regionComments returns the raw text of each comment that is a direct
// child of the <mirrors> element in region.
func regionComments(region string) ([]string, error) {
	var comments []string
	d := xml.NewDecoder(strings.NewReader(region))
	depth := 0
	for {
		off := int(d.InputOffset())
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return comments, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.Comment:
			if depth == 1 {
				comments = append(comments, region[off:int(d.InputOffset())])
			}
		}
	}
}

func renderMirrors(comments []string, records []mavenRecord, indent, unit string) (string, error) {
	var b strings.Builder
	b.WriteString("<mirrors>\n")
	for _, c := range comments {
		b.WriteString(indent + unit + c + "\n")
	}
	if len(records) > 0 {
		out, err := xml.MarshalIndent(records, indent+unit, unit)
		if err != nil {
			return "", fmt.Errorf("encoding maven mirrors: %w", err)
		}
		b.Write(out)
		b.WriteString("\n")
	}
	b.WriteString(indent + "</mirrors>")
	return b.String(), nil
}

// lineIndent returns the whitespace between the start of the line holding
// offset and offset itself, or "" if other text precedes it.
func lineIndent(text string, offset int) string {
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	ws := text[lineStart:offset]
	if strings.Trim(ws, " \t") != "" {
		return ""
	}
	return ws
}

func indentUnit(indent string) string {
	if strings.HasPrefix(indent, "\t") {
		return "\t"
	}
	if len(indent) >= 4 && len(indent)%4 == 0 {
		return "    "
	}
	return "  "
}
