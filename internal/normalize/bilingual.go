package normalize

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

const (
	// BilingualSeparator joins the Chinese and English halves of a title or location.
	BilingualSeparator = " | "

	// TagSeparator joins the halves of a bilingual tag, with no padding.
	TagSeparator = "|"

	// SummarySeparator splits a bilingual summary into its two paragraphs.
	SummarySeparator = "\n\n"
)

var slashRe = regexp.MustCompile(`\s*/\s*`)

// RepairSeparator replaces a misused slash with the " | " pair separator.
func RepairSeparator(s string) string {
	return slashRe.ReplaceAllString(s, BilingualSeparator)
}

var tagSepRe = regexp.MustCompile(`\s*[/|]\s*`)

// RepairTag rewrites a slash or padded pipe to the tag form: "讲座 / Lecture" -> "讲座|Lecture".
func RepairTag(s string) string {
	return tagSepRe.ReplaceAllString(s, TagSeparator)
}

// SplitTags expands a lone comma-separated tag into trimmed, non-empty tags.
// Lists with more than one element are returned as-is.
func SplitTags(tags []string) []string {
	if len(tags) != 1 || !strings.ContainsAny(tags[0], ",，") {
		return tags
	}
	parts := strings.FieldsFunc(tags[0], func(r rune) bool { return r == ',' || r == '，' })
	return lo.Compact(lo.Map(parts, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}

// SplitBilingual returns the two halves of "中文<sep>English".
// A string without sep is returned as zh with an empty en.
func SplitBilingual(s, sep string) (zh, en string) {
	if t := strings.TrimSpace(sep); t != "" {
		sep = t
	}
	before, after, found := strings.Cut(s, sep)
	if !found {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}
