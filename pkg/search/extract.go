package search

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/parametric-ai/searchdocs/pkg/models"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// extractJSON locates the JSON candidate in an agent reply: a ```json fenced
// block first, then any fenced block, else the whole text.
func extractJSON(text string) string {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedAnyRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// parseAnswer unmarshals an agent reply into an Answer. On parse failure it
// returns a fallback answer carrying the raw reply text verbatim in
// Parameters, with degraded set.
func parseAnswer(text string) (answer models.Answer, degraded bool) {
	candidate := extractJSON(text)

	if err := json.Unmarshal([]byte(candidate), &answer); err != nil {
		return models.Answer{
			Signature:  "Unable to parse search result",
			Parameters: text,
			Notes:      "The agent reply was not valid JSON; the raw text is in parameters.",
			Sources:    []string{},
		}, true
	}

	if answer.Sources == nil {
		answer.Sources = []string{}
	}
	return answer, false
}
