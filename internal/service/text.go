package service

import (
	"regexp"
	"strings"
)

var (
	hashtagPattern = regexp.MustCompile(`#\w+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
)

// extractHashtags returns the lower-cased #tags of content in order of
// first appearance, without duplicates.
func extractHashtags(content string) []string {
	return uniqueTokens(hashtagPattern.FindAllString(content, -1), strings.ToLower)
}

// extractMentions returns the @usernames of content in order of first
// appearance, without duplicates. Usernames keep their case.
func extractMentions(content string) []string {
	return uniqueTokens(mentionPattern.FindAllString(content, -1), nil)
}

func uniqueTokens(matches []string, fold func(string) string) []string {
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tok := m[1:]
		if fold != nil {
			tok = fold(tok)
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
