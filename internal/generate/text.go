// ABOUTME: Lightweight story helpers: extractive summary, keyword tags and moral lesson
// ABOUTME: Pure functions, no provider calls

package generate

import "strings"

// DefaultSummaryLength caps Summarize output.
const DefaultSummaryLength = 200

// MaxSuggestedTags caps SuggestTags output.
const MaxSuggestedTags = 8

// DefaultMoral is returned when no keyword matches.
const DefaultMoral = "Every story teaches us something valuable about life, relationships, and the human experience."

type keywordTags struct {
	keyword string
	tags    []string
}

var tagTable = []keywordTags{
	{"akbar", []string{"Mughal", "Emperor", "Historical", "Wisdom"}},
	{"birbal", []string{"Akbar-Birbal", "Wit", "Court", "Wisdom"}},
	{"hanuman", []string{"Mythology", "Devotion", "Ramayana", "Spiritual"}},
	{"rama", []string{"Ramayana", "Mythology", "Dharma", "Epic"}},
	{"krishna", []string{"Mythology", "Mahabharata", "Divine", "Wisdom"}},
	{"palace", []string{"Royal", "Historical", "Architecture"}},
	{"court", []string{"Royal", "Justice", "Historical"}},
	{"devotion", []string{"Spiritual", "Faith", "Religious"}},
	{"wisdom", []string{"Moral", "Teaching", "Philosophy"}},
	{"brave", []string{"Heroic", "Courage", "Adventure"}},
	{"princess", []string{"Royal", "Heroic", "Historical"}},
	{"merchant", []string{"Trade", "Commerce", "Social"}},
}

var contextTags = []struct {
	keyword string
	tag     string
}{
	{"mughal", "Mughal Era"},
	{"rajasthan", "Rajasthani"},
	{"south", "South Indian"},
}

var morals = []struct {
	keyword string
	moral   string
}{
	{"justice", "True justice considers all perspectives and seeks fair solutions for everyone involved."},
	{"wisdom", "Wisdom lies not just in knowledge, but in the compassionate application of that knowledge."},
	{"devotion", "Pure devotion seeks nothing in return and finds joy in selfless service."},
	{"honesty", "Honesty and transparent communication prevent misunderstandings and build trust."},
	{"courage", "True courage is not the absence of fear, but the determination to do what is right despite fear."},
	{"humility", "Humility opens the door to learning and growth, while pride closes it."},
	{"friendship", "Genuine friendship is built on mutual respect, understanding, and shared values."},
}

// Summarize joins the first, middle and last sentences of content, truncated to
// maxLen runes with a trailing "...". Content of three sentences or fewer is
// returned unchanged. maxLen <= 3 uses DefaultSummaryLength.
func Summarize(content string, maxLen int) string {
	if maxLen <= 3 {
		maxLen = DefaultSummaryLength
	}
	sentences := strings.Split(content, ". ")
	if len(sentences) <= 3 {
		return content
	}

	summary := strings.Join([]string{
		sentences[0],
		sentences[len(sentences)/2],
		sentences[len(sentences)-1],
	}, ". ")

	runes := []rune(summary)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return summary
}

// SuggestTags proposes up to MaxSuggestedTags tags from keywords found in content
// and culturalContext, in table order without duplicates.
func SuggestTags(content, culturalContext string) []string {
	lower := strings.ToLower(content)
	seen := make(map[string]bool)
	tags := make([]string, 0, MaxSuggestedTags)
	add := func(tag string) {
		if seen[tag] || len(tags) >= MaxSuggestedTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, kt := range tagTable {
		if strings.Contains(lower, kt.keyword) {
			for _, tag := range kt.tags {
				add(tag)
			}
		}
	}

	ctxLower := strings.ToLower(culturalContext)
	for _, ct := range contextTags {
		if ctxLower != "" && strings.Contains(ctxLower, ct.keyword) {
			add(ct.tag)
		}
	}
	return tags
}

// MoralLesson picks the moral for the first matching theme keyword.
func MoralLesson(content string) string {
	lower := strings.ToLower(content)
	for _, m := range morals {
		if strings.Contains(lower, m.keyword) {
			return m.moral
		}
	}
	return DefaultMoral
}
