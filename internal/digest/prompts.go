package digest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const summaryPrompt = `You are summarizing the transcript of a video.
Write a clear, faithful summary in English of about %d to %d words.
Do not invent facts that are not in the transcript. Use plain prose without markdown.

Transcript:
---
%s
---`

const notesPrompt = `You are turning the transcript of an educational video into study notes.
Write detailed notes in English using markdown:
- start with "# " and a one-line title describing the topic
- a "## Summary" section of one paragraph
- a "## Key Points" section with bullet points in the order they appear
- a "## Core Concepts" section explaining terms and ideas, with **bold** keywords
- a "## Applications" section with practical uses or examples mentioned
Only use information from the transcript.

Transcript:
---
%s
---`

// summaryLength scales the requested summary with the transcript size
func summaryLength(words int) (minWords, maxWords int) {
	switch {
	case words > 2000:
		return 100, 200
	case words > 1000:
		return 80, 150
	default:
		return 60, 120
	}
}

func buildSummaryPrompt(transcript string) string {
	minWords, maxWords := summaryLength(wordCount(transcript))
	return fmt.Sprintf(summaryPrompt, minWords, maxWords, transcript)
}

func buildNotesPrompt(transcript string) string {
	return fmt.Sprintf(notesPrompt, transcript)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// excerpt is the summary used when no model is available: the first n words
func excerpt(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	keyTerms      = []string{"important", "key", "main", "essential", "must", "should", "because", "therefore"}
)

// keyPoints ranks sentences by length, signal words and questions and
// returns the best n in their original order
func keyPoints(text string, n int) []string {
	type scored struct {
		sentence string
		score    float64
		position int
	}

	var candidates []scored
	pos := 0
	for _, loc := range sentenceSplit.FindAllStringIndex(text+".", -1) {
		sentence := strings.TrimSpace(text[pos:min(loc[0], len(text))])
		terminator := ""
		if loc[0] < len(text) {
			terminator = text[loc[0]:min(loc[1], len(text))]
		}
		pos = min(loc[1], len(text))
		if len(sentence) <= 20 {
			continue
		}

		score := float64(min(wordCount(sentence), 50)) / 2
		lower := strings.ToLower(sentence)
		for _, term := range keyTerms {
			if strings.Contains(lower, term) {
				score += 10
				break
			}
		}
		if strings.Contains(terminator, "?") {
			score += 5
		}
		candidates = append(candidates, scored{sentence: sentence, score: score, position: len(candidates)})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].position < candidates[j].position })

	points := make([]string, len(candidates))
	for i, c := range candidates {
		points[i] = c.sentence
	}
	return points
}

// localNotes builds structured notes without a model
func localNotes(text string) string {
	var b strings.Builder
	b.WriteString("# Educational Notes\n\n## Summary\n")
	b.WriteString(excerpt(text, 100))
	b.WriteString("\n\n## Key Points\n")
	for _, point := range keyPoints(text, 8) {
		b.WriteString("- ")
		b.WriteString(point)
		b.WriteString("\n")
	}
	return b.String()
}
