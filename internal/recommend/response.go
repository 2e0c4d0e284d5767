package recommend

import (
	"regexp"
	"strings"

	"github.com/yildizm/go-promptfmt"
)

const (
	// DefaultRelevance applies when the model omits relevance_score
	DefaultRelevance = 0.5

	// rawRelevance applies when the reply is not JSON and its raw text is used
	rawRelevance = 0.6
)

type cleanRule struct {
	re          *regexp.Regexp
	replacement string
}

// Applied in order: markdown emphasis and code spans keep their text,
// stray markup characters and rules go, whitespace collapses.
var cleanRules = []cleanRule{
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile("[#*_`~\\[\\](){}]"), ""},
	{regexp.MustCompile(`[-=]{2,}`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
	{regexp.MustCompile(`[ \t]+`), " "},
}

// CleanContent strips markdown artifacts from model output
func CleanContent(content string) string {
	for _, rule := range cleanRules {
		content = rule.re.ReplaceAllString(content, rule.replacement)
	}
	return strings.TrimSpace(content)
}

// analysisReply is the JSON shape requested from the model
type analysisReply struct {
	Content        string   `json:"content"`
	RelevanceScore *float64 `json:"relevance_score"`
}

// ParseReply extracts the recommendation text and score from a model reply.
// The JSON object between the first '{' and the last '}' is preferred;
// otherwise the whole reply is cleaned and scored 0.6.
func ParseReply(raw string) (content string, score float64) {
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var reply analysisReply
		if res := promptfmt.NewResponse(raw[start : end+1]).TryParseJSON(&reply); res.Success {
			score = DefaultRelevance
			if reply.RelevanceScore != nil {
				score = *reply.RelevanceScore
			}
			return CleanContent(reply.Content), score
		}
	}

	return CleanContent(raw), rawRelevance
}
