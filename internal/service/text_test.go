package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"none", "plain text", []string{}},
		{"lower-cased", "hello #Test world", []string{"test"}},
		{"deduplicated case-insensitively", "#Go #go #GO #zing", []string{"go", "zing"}},
		{"underscores and digits", "#go_1 #2024", []string{"go_1", "2024"}},
		{"bare hash ignored", "# alone", []string{}},
		{"adjacent", "#a#b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractHashtags(tt.content))
		})
	}
}

func TestExtractMentions(t *testing.T) {
	assert.Equal(t, []string{"bob", "Carol"}, extractMentions("hi @bob and @Carol, also @bob"))
	assert.Equal(t, []string{}, extractMentions("email me at @ home"))
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name               string
		page, size, def    int
		wantLimit, wantOff int
	}{
		{"defaults", 0, 0, 20, 20, 0},
		{"negative page", -3, 10, 20, 10, 0},
		{"second page", 2, 10, 20, 10, 10},
		{"capped", 1, 500, 20, MaxPageSize, 0},
		{"zero default", 1, 0, 0, DefaultPageSize, 0},
		{"huge page", math.MaxInt, 100, 20, 100, (MaxPage - 1) * 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, off := pageWindow(tt.page, tt.size, tt.def)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOff, off)
		})
	}
}

func TestNormalize(t *testing.T) {
	decomposed := "e\u0301"
	assert.Equal(t, 2, runeLen(decomposed))
	assert.Equal(t, 1, runeLen(normalize(decomposed)))
}
