package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"tags stripped", "<p>first</p><p>second <b>bold</b></p>", "first second bold"},
		{"entities decoded", "fish &amp; chips", "fish & chips"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Post{Body: tt.body}
			p.Summarize()
			assert.Equal(t, tt.want, p.ShortDescription)
		})
	}
}

func TestSummarize_CutsTextNotMarkup(t *testing.T) {
	// The link tag straddles the cut point of the raw HTML.
	body := strings.Repeat("é", ShortDescriptionLength-5) + `<a href="https://example.com/very/long/path">link text</a> tail`
	p := Post{Body: body}
	p.Summarize()

	assert.Equal(t, ShortDescriptionLength, utf8.RuneCountInString(p.ShortDescription))
	assert.NotContains(t, p.ShortDescription, "<")
	assert.NotContains(t, p.ShortDescription, "href")
	assert.True(t, strings.HasSuffix(p.ShortDescription, " link"), p.ShortDescription)
}
