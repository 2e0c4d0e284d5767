package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yildizm/logsift/internal/common"
)

var (
	leadingSeparators = regexp.MustCompile(`^\s*[-:]+\s*`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	fileLine          = regexp.MustCompile(`File "([^"]+)", line (\d+)`)

	// syslogHeader is "Mon DD HH:MM:SS host prog[pid]:", removed as one unit
	syslogHeader = regexp.MustCompile(`^[A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\S+\s+[^\s:\[]+(?:\[\d+\])?:\s*`)

	// levelTokens removes bracketed, colon-suffixed and bare forms in any case
	levelTokens = map[common.Level]*regexp.Regexp{}
)

func init() {
	for level := common.LevelTrace; level <= common.LevelCritical; level++ {
		names := level.String()
		if level == common.LevelWarning {
			names = "WARNING|WARN"
		}
		levelTokens[level] = regexp.MustCompile(fmt.Sprintf(`(?i)\[(?:%s)\]|\b(?:%s)\b:?`, names, names))
	}
}

// minMessageLength is the cleaned length below which the raw words are used instead
const minMessageLength = 5

// Message builds the human-readable message of a group: the first line
// stripped of its timestamp, level and source, plus exception context
// from any trailing lines.
func Message(in *Input, level common.Level, source string) string {
	first := in.FirstLine()
	message := stripTimestamp(first, in.TimestampSpan)
	header := syslogHeader.FindString(first)
	if header != "" {
		message = first[len(header):]
	}

	if re, ok := levelTokens[level]; ok {
		message = re.ReplaceAllString(message, "")
	}
	if header == "" {
		message = removeSource(message, source)
	}

	message = leadingSeparators.ReplaceAllString(message, "")
	message = strings.TrimSpace(whitespaceRun.ReplaceAllString(message, " "))

	if utf8.RuneCountInString(message) < minMessageLength {
		if words := strings.Fields(first); len(words) > 3 {
			message = strings.Join(words[3:], " ")
		}
	}

	base := message
	if base == "" {
		base = strings.TrimSpace(first)
	}

	trailing := in.Group.Trailing()
	if len(trailing) == 0 {
		return base
	}
	return base + trailingContext(trailing)
}

// removeSource drops the first whole-word occurrence of source along with
// the separators that follow it
func removeSource(message, source string) string {
	if source == "" || source == common.DefaultSource {
		return message
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(source) + `\b[\s:-]*`)
	loc := re.FindStringIndex(message)
	if loc == nil {
		return message
	}
	return message[:loc[0]] + message[loc[1]:]
}

// trailingContext summarises continuation lines. The last exception
// line wins; the last File "...", line N reference gives the location.
func trailingContext(trailing []string) string {
	var exception, location string
	var detail []string

	for _, raw := range trailing {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if len(detail) < 2 {
			detail = append(detail, line)
		}

		lower := strings.ToLower(line)
		if strings.Contains(line, ":") && (strings.Contains(lower, "error") || strings.Contains(lower, "exception")) {
			exception = line
		} else if strings.Contains(line, `File "`) {
			if m := fileLine.FindStringSubmatch(line); m != nil {
				location = m[1] + ":" + m[2]
			}
		}
	}

	switch {
	case exception != "" && location != "":
		return fmt.Sprintf(" → %s (at %s)", exception, location)
	case exception != "":
		return " → " + exception
	case location != "":
		return fmt.Sprintf(" (error at %s)", location)
	case len(detail) > 0:
		return " | " + strings.Join(detail, " | ")
	}
	return ""
}
