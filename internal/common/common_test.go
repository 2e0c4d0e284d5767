package common

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		ok       bool
	}{
		{"error", LevelError, true},
		{"WARN", LevelWarning, true},
		{"warning", LevelWarning, true},
		{" critical ", LevelCritical, true},
		{"trace", LevelTrace, true},
		{"UNKNOWN", LevelUnknown, true},
		{"verbose", LevelUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestRecordJSONUsesLevelNames(t *testing.T) {
	record := Record{Timestamp: "2023-10-09T14:32:40", Level: LevelWarning, Source: "app", Message: "m", Problem: "p"}
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw["level"] != "WARNING" {
		t.Errorf("level = %q, want WARNING", raw["level"])
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal into Record failed: %v", err)
	}
	if back.Level != LevelWarning {
		t.Errorf("decoded level = %v, want WARNING", back.Level)
	}
}

func TestLoadDefaultProblems(t *testing.T) {
	problems, err := LoadDefaultProblems()
	if err != nil {
		t.Fatalf("LoadDefaultProblems failed: %v", err)
	}
	if len(problems) != 37 {
		t.Errorf("expected 37 problem patterns, got %d", len(problems))
	}

	categories := make(map[string]int)
	for _, p := range problems {
		categories[p.Category]++
		if len(p.Keywords) == 0 {
			t.Errorf("problem %q has no keywords", p.Title)
		}
	}
	if len(categories) != 11 {
		t.Errorf("expected 11 categories, got %d", len(categories))
	}
	if categories["Connectivity & Networking"] != 4 {
		t.Errorf("expected 4 networking problems, got %d", categories["Connectivity & Networking"])
	}
}

func TestProblemDocument(t *testing.T) {
	p := ProblemPattern{Title: "Disk Full", Patterns: []string{"no space left", "ENOSPC"}, Description: "Volume is full"}
	if got := p.Document(); got != "Disk Full no space left ENOSPC Volume is full" {
		t.Errorf("Document() = %q", got)
	}
}

func TestLoadDefaultReferences(t *testing.T) {
	refs, err := LoadDefaultReferences()
	if err != nil {
		t.Fatalf("LoadDefaultReferences failed: %v", err)
	}
	if len(refs.Timestamps) != 8 || len(refs.Levels) != 18 || len(refs.Sources) != 14 {
		t.Errorf("unexpected reference sizes: %d timestamps, %d levels, %d sources",
			len(refs.Timestamps), len(refs.Levels), len(refs.Sources))
	}
}

func TestLoadProblemsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `- title: "Queue Backlog"
  category: "Performance Issue"
  description: "Consumers are falling behind"
  severity: medium
  patterns: ["queue backlog"]
  keywords: ["queue", "backlog"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	problems, err := LoadProblems(path)
	if err != nil {
		t.Fatalf("LoadProblems failed: %v", err)
	}
	if len(problems) != 1 || problems[0].Title != "Queue Backlog" {
		t.Errorf("unexpected problems: %+v", problems)
	}

	if _, err := LoadProblems(filepath.Join(dir, "custom.txt")); err == nil {
		t.Error("expected error for non-YAML extension")
	}
}

func TestInputError(t *testing.T) {
	cause := errors.New("bad byte")
	err := NewInputError("undecodable content", cause)

	if !IsInputError(err) {
		t.Error("IsInputError should recognise InputError")
	}
	if !errors.Is(err, cause) {
		t.Error("InputError should unwrap to its cause")
	}

	wrapped := Unavailable("redis", errors.New("dial tcp: refused"))
	if !errors.Is(wrapped, ErrCollaboratorUnavailable) {
		t.Error("Unavailable should wrap ErrCollaboratorUnavailable")
	}
	if IsInputError(wrapped) {
		t.Error("collaborator errors are not input errors")
	}
}
