package tagger

import (
	"sort"
	"strings"
)

// DefaultThreshold is the minimum confidence for a tag to be kept.
const DefaultThreshold = 0.35

// Caption is the canonical tag list and the caption text derived from it.
type Caption struct {
	Tags []string
	Text string
}

// Normalize filters scores by threshold and orders the survivors by descending
// confidence, breaking ties by name, so the caption is deterministic.
func Normalize(scores map[string]float64, threshold float64) Caption {
	type scored struct {
		tag   string
		score float64
	}
	var kept []scored
	for tag, s := range scores {
		if s >= threshold {
			kept = append(kept, scored{tag, s})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].tag < kept[j].tag
	})

	c := Caption{Tags: []string{}}
	seen := map[string]bool{}
	escaped := []string{}
	for _, k := range kept {
		t := Display(k.tag)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		c.Tags = append(c.Tags, t)
		escaped = append(escaped, Escape(t))
	}
	c.Text = strings.Join(escaped, ", ")
	return c
}

// Display converts a model label to the form stored in metadata.
func Display(tag string) string {
	return strings.TrimSpace(strings.ReplaceAll(tag, "_", " "))
}

// Escape prefixes backslashes, parentheses and commas with a backslash.
func Escape(tag string) string {
	var b strings.Builder
	for _, r := range tag {
		switch r {
		case '\\', '(', ')', ',':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unescape reverses Escape.
func Unescape(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

// SplitCaption parses caption text back into tags. Only unescaped commas
// separate tags.
func SplitCaption(text string) []string {
	tags := []string{}
	add := func(w string) {
		if w = strings.TrimSpace(w); w != "" {
			tags = append(tags, Unescape(w))
		}
	}
	start, escaped := 0, false
	for i, r := range text {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			add(text[start:i])
			start = i + 1
		}
	}
	add(text[start:])
	return tags
}
