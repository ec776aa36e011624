package doctags

import (
	"regexp"
	"strings"
)

// OTSL cell tokens. Merged cells (lcel, ucel, xcel) render empty.
var (
	cellRe    = regexp.MustCompile(`<(fcel|ecel|ched|rhed|srow|lcel|ucel|xcel)>`)
	captionRe = regexp.MustCompile(`(?s)<caption>.*?</caption>`)
)

// table converts an OTSL table body to a Markdown table. The first row is
// the header, as Markdown requires one.
func table(inner string) string {
	capText := caption(inner)
	inner = captionRe.ReplaceAllString(inner, "")

	var rows [][]string
	width := 0
	for _, line := range strings.Split(inner, "<nl>") {
		cells := parseRow(line)
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, cells)
		width = max(width, len(cells))
	}
	if len(rows) == 0 {
		return capText
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteByte('|')
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteByte('\n')
	}
	writeRow(rows[0])
	b.WriteByte('|')
	for i := 0; i < width; i++ {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')
	for _, r := range rows[1:] {
		writeRow(r)
	}
	out := strings.TrimRight(b.String(), "\n")
	if capText != "" {
		out = capText + "\n\n" + out
	}
	return out
}

func parseRow(line string) []string {
	locs := cellRe.FindAllStringSubmatchIndex(line, -1)
	if len(locs) == 0 {
		return nil
	}
	cells := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(line)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		kind := line[loc[2]:loc[3]]
		text := ""
		switch kind {
		case "lcel", "ucel", "xcel", "ecel":
		default:
			text = escapeCell(plain(line[loc[1]:end]))
		}
		cells = append(cells, text)
	}
	return cells
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
