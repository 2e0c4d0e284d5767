package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/vectorstore"
)

type levelRule struct {
	re    *regexp.Regexp
	level common.Level
}

// levelRules run against the uppercased first line, in order
var levelRules = []levelRule{
	{regexp.MustCompile(`\bERROR\b`), common.LevelError},
	{regexp.MustCompile(`\bFATAL\b`), common.LevelFatal},
	{regexp.MustCompile(`\bCRITICAL\b`), common.LevelCritical},
	{regexp.MustCompile(`\bWARN(?:ING)?\b`), common.LevelWarning},
	{regexp.MustCompile(`\bINFO\b`), common.LevelInfo},
	{regexp.MustCompile(`\bDEBUG\b`), common.LevelDebug},
	{regexp.MustCompile(`\bTRACE\b`), common.LevelTrace},
}

var (
	failureWords = []string{
		"échec", "erreur", "failed", "failure", "timeout", "refused",
		"refusée", "permission denied", "permission refusée",
	}
	warningWords = []string{"latence", "warning", "avertissement"}

	textErrorWords = []string{
		"traceback", "exception", "error:", "zerodivisionerror", "failed",
		"failure", "fatal", "échec", "erreur", "timeout", "refused", "refusée",
	}
	textWarningWords = []string{"warn", "warning", "latence", "avertissement"}
	textDebugWords   = []string{"debug", "trace"}
)

func (e *Extractor) levelStrategies() []Strategy[common.Level] {
	return []Strategy[common.Level]{
		deterministic("keyword", func(in *Input) (common.Level, bool) {
			upper := strings.ToUpper(in.FirstLine())
			for _, rule := range levelRules {
				if rule.re.MatchString(upper) {
					return rule.level, true
				}
			}
			return common.LevelUnknown, false
		}),
		deterministic("failure-words", func(in *Input) (common.Level, bool) {
			return common.LevelError, containsAny(strings.ToLower(in.FirstLine()), failureWords)
		}),
		deterministic("warning-words", func(in *Input) (common.Level, bool) {
			return common.LevelWarning, containsAny(strings.ToLower(in.FirstLine()), warningWords)
		}),
		{
			Name:  "semantic",
			Floor: 0.3,
			Run: func(ctx context.Context, in *Input) (common.Level, float64, bool) {
				match, ok := e.nearest(ctx, vectorstore.CollectionLevels, in.Text)
				if !ok {
					return common.LevelUnknown, 0, false
				}
				level, known := common.ParseLevel(match.Metadata["level"])
				if !known || level == common.LevelUnknown {
					return common.LevelUnknown, 0, false
				}
				return level, match.Confidence(), true
			},
		},
		deterministic("full-text", func(in *Input) (common.Level, bool) {
			text := strings.ToLower(in.Text)
			switch {
			case containsAny(text, textErrorWords):
				return common.LevelError, true
			case containsAny(text, textWarningWords):
				return common.LevelWarning, true
			case containsAny(text, textDebugWords):
				return common.LevelDebug, true
			}
			return common.LevelUnknown, false
		}),
	}
}

// Level resolves the group's severity, defaulting to INFO
func (e *Extractor) Level(ctx context.Context, in *Input) Result[common.Level] {
	return Cascade(ctx, in, e.levels, common.LevelInfo)
}
