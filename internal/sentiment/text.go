package sentiment

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/russross/blackfriday/v2"
	"github.com/spacesedan/brandpulse/internal/models"
)

// MinTextLength is the shortest normalized text worth sending for scoring.
const MinTextLength = 3

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1")
	return urlPattern.ReplaceAllString(input, "")
}

// ConvertMarkdownToText renders markdown and drops the markup, leaving
// whitespace-collapsed plain text without URLs.
func ConvertMarkdownToText(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	input = RemoveLinks(input)
	rendered := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := html.UnescapeString(tagPattern.ReplaceAllString(string(rendered), " "))
	return strings.Join(strings.Fields(plain), " ")
}

// ExtractText picks the first content field, in priority order text,
// description, title, whose plain text reaches MinTextLength. An empty
// result means there is nothing to analyze.
func ExtractText(c models.Content) string {
	for _, candidate := range []string{c.Text, c.Description, c.Title} {
		text := ConvertMarkdownToText(candidate)
		if utf8.RuneCountInString(text) >= MinTextLength {
			return text
		}
	}
	return ""
}
