package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		want     string
		excludes []string
	}{
		{
			name: "main content preferred over body",
			html: `<html><body>
				<nav>Home | About</nav>
				<main><h1>Heat pumps</h1><p>They move heat.</p><p>Efficiency  varies.</p></main>
				<footer>Copyright</footer>
			</body></html>`,
			want:     "Heat pumps\nThey move heat.\nEfficiency varies.",
			excludes: []string{"Home", "Copyright"},
		},
		{
			name: "article when no main",
			html: `<body><div class="sidebar">Related</div><article><p>Body text</p></article></body>`,
			want: "Body text",
		},
		{
			name:     "body fallback drops scripts",
			html:     `<body><script>var x = 1;</script><div>Plain page</div><style>p{}</style></body>`,
			want:     "Plain page",
			excludes: []string{"var x"},
		},
		{
			name: "list items on their own lines",
			html: `<main><ul><li>one</li><li>two</li></ul></main>`,
			want: "one\ntwo",
		},
		{
			name: "empty document",
			html: ``,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(tt.html)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			for _, ex := range tt.excludes {
				assert.NotContains(t, got, ex)
			}
		})
	}
}

func TestCleanWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", cleanWhitespace("  a \t b \n\n   \n c  "))
	assert.Equal(t, "", cleanWhitespace(" \n\t "))
}
