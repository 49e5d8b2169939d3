package collab

import (
	"regexp"
	"strings"
)

// DefaultReviewMaxChars caps the draft excerpt handed to the Reviewer.
// Reviewing key sections instead of the full draft cuts the review
// prompt substantially without losing the structure being checked.
const DefaultReviewMaxChars = 800

var (
	// headerPattern matches markdown headers, numbered section titles and
	// bold titles.
	headerPattern = regexp.MustCompile(`^(#{1,3}\s+|[1-9]+[.)]\s*|[A-Z]\.\s+|\*\*[^*]+\*\*)`)

	// pointPattern matches bulleted or numbered key points.
	pointPattern = regexp.MustCompile(`^\s*[-•]\s+|^\s*[1-9]+[.)]\s+`)
)

// ExtractKeySections condenses a draft to its headers, key points and
// leading sentences for review. Falls back to plain truncation when the
// draft has no extractable structure.
func ExtractKeySections(draft string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultReviewMaxChars
	}

	var keyParts []string
	sawSectionLead := false

	for _, line := range strings.Split(draft, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}

		switch {
		case headerPattern.MatchString(stripped):
			keyParts = append(keyParts, stripped)
			sawSectionLead = false
		case pointPattern.MatchString(stripped):
			keyParts = append(keyParts, stripped)
		case !sawSectionLead && len(stripped) > 20:
			if len(stripped) > 150 {
				stripped = stripped[:150] + "..."
			}
			keyParts = append(keyParts, stripped)
			sawSectionLead = true
		}
	}

	summary := strings.Join(keyParts, "\n")

	if len(summary) > maxChars {
		half := maxChars / 2
		summary = summary[:half] + "\n...[sections omitted]...\n" + summary[len(summary)-half:]
	}

	// Too little structure extracted: truncate the original instead.
	if len(summary) < 100 && len(draft) > 0 {
		if len(draft) > maxChars {
			return draft[:maxChars] + "..."
		}
		return draft
	}

	return summary
}
