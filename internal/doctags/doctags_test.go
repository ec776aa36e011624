package doctags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<doctag><page_header><loc_1><loc_2><loc_3><loc_4>ACME Corp</page_header>
<title><loc_10><loc_10><loc_100><loc_20>Annual Report</title>
<section_header_level_1><loc_10><loc_30><loc_100><loc_40>Summary</section_header_level_1>
<text><loc_10><loc_50><loc_400><loc_60>Revenue grew.</text>
<unordered_list><list_item><loc_1><loc_1><loc_2><loc_2>One</list_item><list_item>Two</list_item></unordered_list>
<otsl><loc_5><loc_5><loc_9><loc_9><ched>Year<ched>Total<nl><fcel>2024<fcel>10<nl><fcel>2025<ecel><nl></otsl>
<code><loc_1><loc_1><loc_2><loc_2><_Python_>print(1)</code>
<page_footer><loc_1><loc_1><loc_2><loc_2>3</page_footer>
</doctag><|end_of_text|>`

func TestToMarkdown(t *testing.T) {
	want := "# Annual Report\n\n" +
		"## Summary\n\n" +
		"Revenue grew.\n\n" +
		"- One\n- Two\n\n" +
		"| Year | Total |\n| --- | --- |\n| 2024 | 10 |\n| 2025 |  |\n\n" +
		"```python\nprint(1)\n```"
	assert.Equal(t, want, ToMarkdown(page))
}

func TestToMarkdownElements(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ordered list", "<ordered_list><list_item>a</list_item><list_item>b</list_item></ordered_list>", "1. a\n2. b"},
		{"deep section", "<section_header_level_7>Deep</section_header_level_7>", "###### Deep"},
		{"formula", "<formula>E=mc^2</formula>", "$$\nE=mc^2\n$$"},
		{"picture", "<picture><loc_1><caption>Fig 1</caption></picture>", "*[image]*\n\nFig 1"},
		{"bare picture", "<picture></picture>", "*[image]*"},
		{"unknown tag keeps text", "<footnote>note <b>x</b></footnote>", "note x"},
		{"unterminated element", "<text>partial", "partial"},
		{"text outside elements", "loose text", "loose text"},
		{"unknown code language", "<code><_unknown_>x</code>", "```\nx\n```"},
		{"pipe escaped in cells", "<otsl><ched>a|b<nl><fcel>c<nl></otsl>", "| a\\|b |\n| --- |\n| c |"},
		{"merged cells empty", "<otsl><ched>a<lcel><nl><fcel>x<fcel>y<nl></otsl>", "| a |  |\n| --- | --- |\n| x | y |"},
		{"table caption", "<otsl><caption>Totals</caption><ched>a<nl><fcel>1<nl></otsl>", "Totals\n\n| a |\n| --- |\n| 1 |"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMarkdown(tt.in))
		})
	}
}

func TestToHTML(t *testing.T) {
	html, err := ToHTML(ToMarkdown(page))
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Annual Report</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<th>Year</th>")
	assert.Contains(t, html, "<li>One</li>")
	assert.NotContains(t, html, "ACME Corp")
}

func TestRenderHTMLKeepsImagePlaceholder(t *testing.T) {
	html, err := Render("<picture><caption>Fig 1</caption></picture>", FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "<p><em>[image]</em></p>\n<p>Fig 1</p>\n", html)
	assert.NotContains(t, html, "raw HTML omitted")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatDocTags, "DocTags": FormatDocTags, "md": FormatMarkdown, "markdown": FormatMarkdown, " html ": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	out, err := Render(page, FormatDocTags)
	require.NoError(t, err)
	assert.Equal(t, page, out)

	out, err = Render("<title>T</title>", FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# T", out)

	out, err = Render("<title>T</title>", FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "<h1>T</h1>\n", out)

	_, err = Render("x", Format("pdf"))
	assert.Error(t, err)
}
