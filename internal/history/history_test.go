package history

import (
	"fmt"
	"sync"
	"testing"
)

func TestRetainsMostRecentTurns(t *testing.T) {
	s := New(0)
	for i := 0; i < 60; i++ {
		s.Append("db", Turn{Role: "assistant", Content: fmt.Sprintf("turn %d", i)})
	}

	if got := s.Len("db"); got != DefaultMaxTurns {
		t.Fatalf("Len = %d, want %d", got, DefaultMaxTurns)
	}
	all := s.Recent("db", 0)
	if all[0].Content != "turn 10" || all[len(all)-1].Content != "turn 59" {
		t.Errorf("unexpected window %q .. %q", all[0].Content, all[len(all)-1].Content)
	}

	last := s.Recent("db", 2)
	if len(last) != 2 || last[1].Content != "turn 59" {
		t.Errorf("Recent(2) = %+v", last)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s := New(3)
	s.Append("a", Turn{Content: "1"})
	s.Append("b", Turn{Content: "2"})
	s.Clear("a")

	if s.Len("a") != 0 || s.Len("b") != 1 {
		t.Errorf("sessions leaked: a=%d b=%d", s.Len("a"), s.Len("b"))
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s := New(3)
	s.Append("a", Turn{Content: "original"})
	got := s.Recent("a", 0)
	got[0].Content = "changed"

	if s.Recent("a", 0)[0].Content != "original" {
		t.Error("Recent must not expose internal storage")
	}
}

func TestConcurrentAppend(t *testing.T) {
	s := New(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Append("shared", Turn{Content: "x"})
			}
		}()
	}
	wg.Wait()

	if s.Len("shared") != 10 {
		t.Errorf("Len = %d, want 10", s.Len("shared"))
	}
}
