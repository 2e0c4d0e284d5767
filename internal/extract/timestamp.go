package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yildizm/logsift/internal/vectorstore"
)

// CanonicalLayout is the only timestamp form records carry
const CanonicalLayout = "2006-01-02T15:04:05"

// Timestamp is an extracted timestamp
type Timestamp struct {
	Normalized string
	Raw        string // the captured timestamp text
	Span       string // the full matched text, including brackets
}

// timestampPatterns are tried in order against the first line, most specific first
var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:[.,]\d+)?Z?)`),
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}(?:[.,]\d+)?)`),
	// ctime carries a year and must win over the syslog form it contains
	regexp.MustCompile(`([A-Za-z]{3}\s+[A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:[.,]\d+)?\s+\d{4})`),
	regexp.MustCompile(`([A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`),
	// bracketed values must look like a date or a time, not a pid or a level
	regexp.MustCompile(`\[([^\]]*(?:\d{2}:\d{2}|\d{4}-\d{2}-\d{2})[^\]]*)\]`),
	regexp.MustCompile(`(\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2}\s+[+-]\d{4})`),
	regexp.MustCompile(`(\d{10})`),
	regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})`),
}

// semanticTimestampPatterns re-extract a timestamp once its type is known
var semanticTimestampPatterns = map[string]*regexp.Regexp{
	"iso_date":  regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`),
	"iso_z":     regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z?)`),
	"syslog":    regexp.MustCompile(`([A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`),
	"apache":    regexp.MustCompile(`\[([^\]]+)\]`),
	"nginx":     regexp.MustCompile(`(\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2}\s+[+-]\d{4})`),
	"iso_ms":    regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z?)`),
	"unix":      regexp.MustCompile(`(\d{10})`),
	"time_only": regexp.MustCompile(`(\d{2}:\d{2}:\d{2})`),
}

var (
	isoForm     = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:T|\s+)(\d{2}:\d{2}:\d{2})(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?$`)
	syslogForm  = regexp.MustCompile(`^([A-Za-z]{3})\s+(\d{1,2})\s+(\d{2}:\d{2}:\d{2})$`)
	ctimeForm   = regexp.MustCompile(`^(?:[A-Za-z]{3}\s+)?([A-Za-z]{3})\s+(\d{1,2})\s+(\d{2}:\d{2}:\d{2})(?:[.,]\d+)?\s+(\d{4})$`)
	nginxForm   = regexp.MustCompile(`^(\d{2})/([A-Za-z]{3})/(\d{4}):(\d{2}:\d{2}:\d{2})`)
	epochForm   = regexp.MustCompile(`^\d{10}$`)
	bareTime    = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	monthNumber = map[string]string{
		"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
		"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
	}
)

// NormalizeTimestamp converts a raw timestamp to YYYY-MM-DDTHH:MM:SS.
// Forms without a year take it from now; unrecognised input yields now.
func NormalizeTimestamp(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)

	if m := isoForm.FindStringSubmatch(raw); m != nil {
		return m[1] + "T" + m[2]
	}
	if m := syslogForm.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%04d-%s-%sT%s", now.Year(), month(m[1]), zeroPad(m[2]), m[3])
	}
	if m := ctimeForm.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s-%s-%sT%s", m[4], month(m[1]), zeroPad(m[2]), m[3])
	}
	if m := nginxForm.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s-%s-%sT%s", m[3], month(m[2]), m[1], m[4])
	}
	if epochForm.MatchString(raw) {
		secs, _ := strconv.ParseInt(raw, 10, 64)
		return time.Unix(secs, 0).In(now.Location()).Format(CanonicalLayout)
	}
	if bareTime.MatchString(raw) {
		return now.Format("2006-01-02") + "T" + raw
	}

	return now.Format(CanonicalLayout)
}

// month maps a three-letter month name; unknown names map to January
func month(name string) string {
	if n, ok := monthNumber[strings.ToLower(name)]; ok {
		return n
	}
	return "01"
}

func zeroPad(day string) string {
	if len(day) == 1 {
		return "0" + day
	}
	return day
}

// findTimestamp returns the first pattern match in line
func findTimestamp(line string, patterns []*regexp.Regexp) (raw, span string, ok bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], m[0], true
		}
	}
	return "", "", false
}

func (e *Extractor) timestampStrategies() []Strategy[Timestamp] {
	return []Strategy[Timestamp]{
		deterministic("pattern", func(in *Input) (Timestamp, bool) {
			raw, span, ok := findTimestamp(in.FirstLine(), timestampPatterns)
			if !ok {
				return Timestamp{}, false
			}
			return Timestamp{Normalized: NormalizeTimestamp(raw, e.now()), Raw: raw, Span: span}, true
		}),
		{
			Name:  "semantic",
			Floor: 0.3,
			Run: func(ctx context.Context, in *Input) (Timestamp, float64, bool) {
				match, ok := e.nearest(ctx, vectorstore.CollectionTimestamps, in.FirstLine())
				if !ok {
					return Timestamp{}, 0, false
				}
				re, known := semanticTimestampPatterns[match.Metadata["type"]]
				if !known {
					return Timestamp{}, 0, false
				}
				m := re.FindStringSubmatch(in.FirstLine())
				if m == nil {
					return Timestamp{}, 0, false
				}
				ts := Timestamp{Normalized: NormalizeTimestamp(m[1], e.now()), Raw: m[1], Span: m[0]}
				return ts, match.Confidence(), true
			},
		},
	}
}

// Timestamp resolves the group's timestamp, defaulting to the current time
func (e *Extractor) Timestamp(ctx context.Context, in *Input) Result[Timestamp] {
	fallback := Timestamp{Normalized: e.now().Format(CanonicalLayout)}
	result := Cascade(ctx, in, e.timestamps, fallback)
	in.TimestampSpan = result.Value.Span
	return result
}

// stripTimestamp removes span from line, along with the empty brackets
// left behind when the span was the inside of a bracketed timestamp
func stripTimestamp(line, span string) string {
	if span == "" {
		return line
	}
	stripped := strings.Replace(line, span, "", 1)
	if stripped != line {
		stripped = strings.Replace(stripped, "[]", "", 1)
	}
	return stripped
}
