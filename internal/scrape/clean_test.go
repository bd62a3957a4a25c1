package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"strips tags", "<p>Hello <script>alert(1)</script><b>world</b></p>", "Hello world"},
		{"decodes entities", "AT&amp;T &quot;quoted&quot;", `AT&T "quoted"`},
		{"collapses spaces", "a \t  b  c", "a b c"},
		{"collapses blank lines", "one\n\n\n\n\ntwo\r\nthree", "one\n\ntwo\nthree"},
		{"keeps markdown", "# Title\n\n- item", "# Title\n\n- item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestClipWords(t *testing.T) {
	text, n := ClipWords("one two  three\nfour five", 3)
	assert.Equal(t, "one two  three", text)
	assert.Equal(t, 3, n)

	text, n = ClipWords("one two", 5)
	assert.Equal(t, "one two", text)
	assert.Equal(t, 2, n)

	text, n = ClipWords("a b c", 0)
	assert.Equal(t, "a b c", text)
	assert.Equal(t, 3, n)
}
