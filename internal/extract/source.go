package extract

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/vectorstore"
)

var (
	syslogPrefix   = regexp.MustCompile(`^[A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\S+\s+`)
	leadingLevel   = regexp.MustCompile(`^\[?[A-Z]+\]?:?\s+`)
	identifier     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*`)
	fileReference  = regexp.MustCompile(`File "([^"]+)"`)
	extensionApps  = map[string]string{".py": "python_app", ".java": "java_app", ".js": "javascript_app"}
	serviceKeyword = []string{"apache", "nginx", "mysql", "postgres", "redis", "kernel", "sshd"}
)

type filenameHint struct {
	words  []string
	source string
}

var filenameHints = []filenameHint{
	{[]string{"apache", "httpd"}, "apache"},
	{[]string{"nginx"}, "nginx"},
	{[]string{"mysql"}, "mysql"},
	{[]string{"app", "application", "service"}, "application"},
}

// sourceCandidate strips the syslog host prefix, the timestamp and a
// leading level token from the first line
func sourceCandidate(in *Input) string {
	line := in.FirstLine()
	if stripped := syslogPrefix.ReplaceAllString(line, ""); stripped != line {
		line = stripped
	} else {
		line = stripTimestamp(line, in.TimestampSpan)
	}
	line = strings.TrimSpace(line)
	return leadingLevel.ReplaceAllString(line, "")
}

func (e *Extractor) sourceStrategies() []Strategy[string] {
	return []Strategy[string]{
		deterministic("identifier", func(in *Input) (string, bool) {
			fields := strings.Fields(sourceCandidate(in))
			if len(fields) == 0 {
				return "", false
			}
			if id := identifier.FindString(fields[0]); id != "" {
				return id, true
			}
			return "", false
		}),
		{
			Name:  "semantic",
			Floor: 0.4,
			Run: func(ctx context.Context, in *Input) (string, float64, bool) {
				match, ok := e.nearest(ctx, vectorstore.CollectionSources, in.Text)
				if !ok || match.Metadata["source"] == "" {
					return "", 0, false
				}
				return match.Metadata["source"], match.Confidence(), true
			},
		},
		deterministic("file-reference", func(in *Input) (string, bool) {
			m := fileReference.FindStringSubmatch(in.Text)
			if m == nil {
				return "", false
			}
			ext := strings.ToLower(filepath.Ext(m[1]))
			if app, ok := extensionApps[ext]; ok {
				return app, true
			}
			stem := strings.TrimSuffix(filepath.Base(m[1]), filepath.Ext(m[1]))
			return stem, stem != ""
		}),
		deterministic("filename", func(in *Input) (string, bool) {
			name := strings.ToLower(in.Filename)
			if name == "" {
				return "", false
			}
			for _, hint := range filenameHints {
				if containsAny(name, hint.words) {
					return hint.source, true
				}
			}
			return "", false
		}),
		deterministic("service-keyword", func(in *Input) (string, bool) {
			text := strings.ToLower(in.Text)
			for _, service := range serviceKeyword {
				if strings.Contains(text, service) {
					return service, true
				}
			}
			return "", false
		}),
	}
}

// Source resolves the emitting component, defaulting to "system".
// Timestamp must run first so its span can be stripped.
func (e *Extractor) Source(ctx context.Context, in *Input) Result[string] {
	return Cascade(ctx, in, e.sources, common.DefaultSource)
}
