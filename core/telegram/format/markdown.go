package format

import (
	"fmt"
	"regexp"
)

// Telegram markdown dialects.
const (
	MarkdownV1 = 1
	MarkdownV2 = 2
)

var markupSpecials = map[int]*regexp.Regexp{
	MarkdownV1: regexp.MustCompile("([_*`\\[])"),
	MarkdownV2: regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!])"),
}

// EscapeMarkdown escapes every character the given dialect treats as markup,
// so schedule names and user input interpolated into messages cannot break
// entity parsing.
func EscapeMarkdown(text string, version int) (string, error) {
	re, ok := markupSpecials[version]
	if !ok {
		return "", fmt.Errorf("unsupported markdown version: %d", version)
	}
	return re.ReplaceAllString(text, `\$1`), nil
}
