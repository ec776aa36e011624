// Package doctags converts DocTags model output into Markdown and HTML.
package doctags

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format selects how a final transcription is rendered.
type Format string

const (
	FormatDocTags  Format = "doctags"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts doctags, markdown (md) or html. Empty means doctags.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "doctags":
		return FormatDocTags, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown format %q (want doctags, markdown or html)", s)
}

// Render converts doctags to f.
func Render(doctags string, f Format) (string, error) {
	switch f {
	case FormatDocTags, "":
		return doctags, nil
	case FormatMarkdown:
		return ToMarkdown(doctags), nil
	case FormatHTML:
		return ToHTML(ToMarkdown(doctags))
	}
	return "", fmt.Errorf("unknown format %q", f)
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// imagePlaceholder marks a picture or chart. It is plain Markdown so the
// HTML renderer keeps it without raw HTML passthrough.
const imagePlaceholder = "*[image]*"

// ToHTML renders GitHub flavored Markdown to HTML.
func ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	locRe      = regexp.MustCompile(`<loc_\d+>`)
	anyTagRe   = regexp.MustCompile(`</?[a-zA-Z_][a-zA-Z0-9_]*>`)
	codeLangRe = regexp.MustCompile(`^<_([^>]*)_>`)
	sectionRe  = regexp.MustCompile(`^section_header_level_(\d+)$`)
)

// dropped elements carry page furniture, not content.
var dropped = map[string]bool{
	"page_header": true,
	"page_footer": true,
}

// ToMarkdown converts a DocTags document to Markdown. Unknown elements keep
// their text; location tokens are removed.
func ToMarkdown(doctags string) string {
	s := strings.TrimSpace(doctags)
	s = strings.TrimSuffix(s, "<|end_of_text|>")
	s = locRe.ReplaceAllString(s, "")
	s = strings.TrimPrefix(strings.TrimSpace(s), "<doctag>")
	s = strings.TrimSuffix(strings.TrimSpace(s), "</doctag>")

	var blocks []string
	for _, el := range elements(s) {
		if b := block(el); b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.Join(blocks, "\n\n")
}

type element struct {
	name  string
	inner string
}

// elements splits s into its top-level <name>...</name> elements. Text
// outside any element becomes an element with an empty name. An element
// with no closing tag runs to the end of s.
func elements(s string) []element {
	var out []element
	for len(s) > 0 {
		open := strings.IndexByte(s, '<')
		if open < 0 {
			out = appendText(out, s)
			break
		}
		out = appendText(out, s[:open])
		end := strings.IndexByte(s[open:], '>')
		if end < 0 {
			out = appendText(out, s[open:])
			break
		}
		name := s[open+1 : open+end]
		rest := s[open+end+1:]
		if strings.HasPrefix(name, "/") {
			s = rest
			continue
		}
		closing := "</" + name + ">"
		if i := strings.Index(rest, closing); i >= 0 {
			out = append(out, element{name: name, inner: rest[:i]})
			s = rest[i+len(closing):]
		} else {
			out = append(out, element{name: name, inner: rest})
			s = ""
		}
	}
	return out
}

func appendText(out []element, s string) []element {
	if strings.TrimSpace(s) == "" {
		return out
	}
	return append(out, element{inner: s})
}

func block(el element) string {
	if dropped[el.name] {
		return ""
	}
	if m := sectionRe.FindStringSubmatch(el.name); m != nil {
		level, _ := strconv.Atoi(m[1])
		return strings.Repeat("#", min(level+1, 6)) + " " + plain(el.inner)
	}
	switch el.name {
	case "title":
		return "# " + plain(el.inner)
	case "list_item":
		return "- " + plain(el.inner)
	case "unordered_list", "ordered_list":
		return list(el)
	case "code":
		return code(el.inner)
	case "formula":
		return "$$\n" + plain(el.inner) + "\n$$"
	case "otsl":
		return table(el.inner)
	case "picture", "chart":
		if c := caption(el.inner); c != "" {
			return imagePlaceholder + "\n\n" + c
		}
		return imagePlaceholder
	}
	return plain(el.inner)
}

// plain strips remaining tags and collapses surrounding whitespace.
func plain(s string) string {
	return strings.TrimSpace(anyTagRe.ReplaceAllString(s, ""))
}

func list(el element) string {
	var lines []string
	n := 0
	for _, item := range elements(el.inner) {
		text := plain(item.inner)
		if text == "" {
			continue
		}
		n++
		if el.name == "ordered_list" {
			lines = append(lines, strconv.Itoa(n)+". "+text)
		} else {
			lines = append(lines, "- "+text)
		}
	}
	return strings.Join(lines, "\n")
}

func code(inner string) string {
	inner = strings.TrimSpace(inner)
	lang := ""
	if m := codeLangRe.FindStringSubmatch(inner); m != nil {
		lang = strings.ToLower(m[1])
		if lang == "unknown" {
			lang = ""
		}
		inner = inner[len(m[0]):]
	}
	return "```" + lang + "\n" + strings.Trim(inner, "\n") + "\n```"
}

func caption(inner string) string {
	return plain(captionRe.FindString(inner))
}
