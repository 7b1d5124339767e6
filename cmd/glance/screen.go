package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jordigilh/glance/internal/orchestrator"
	"github.com/jordigilh/glance/internal/telemetry"
)

// transcriptScreen implements headless.Screen by accumulating rendered
// lines from orchestrator events, so headless assertions can inspect
// "what would have appeared on screen" without a real bubbletea
// program. It owns no terminal state: Resize is recorded but has no
// observable effect since nothing is actually drawn.
type transcriptScreen struct {
	mu     sync.Mutex
	lines  []string
	width  int
	height int
}

func newTranscriptScreen(actor *orchestrator.Actor, metrics *telemetry.Metrics) *transcriptScreen {
	s := &transcriptScreen{}
	go func() {
		for e := range actor.Events() {
			recordEventMetrics(metrics, e)
			s.mu.Lock()
			if e.Kind == orchestrator.EventCleared {
				s.lines = nil
			} else {
				s.lines = append(s.lines, renderHeadlessEvent(e))
			}
			s.mu.Unlock()
		}
	}()
	return s
}

func recordEventMetrics(metrics *telemetry.Metrics, e orchestrator.Event) {
	switch e.Kind {
	case orchestrator.EventResult:
		metrics.RequestsTotal.WithLabelValues("sql", "success").Inc()
	case orchestrator.EventError:
		metrics.RequestsTotal.WithLabelValues("sql", "error").Inc()
	case orchestrator.EventConfirmationRequired:
		metrics.SafetyLevel.WithLabelValues(e.Level.String()).Inc()
	}
}

func (s *transcriptScreen) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.lines, "\n")
}

func (s *transcriptScreen) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

func renderHeadlessEvent(e orchestrator.Event) string {
	switch e.Kind {
	case orchestrator.EventError, orchestrator.EventConnectionSwitchFailed:
		return "error: " + e.Message
	case orchestrator.EventResult:
		if e.Result != nil {
			return fmt.Sprintf("%v", e.Result)
		}
		return e.Message
	default:
		return e.Message
	}
}

func (s *transcriptScreen) flush(output string) {
	s.mu.Lock()
	lines := append([]string(nil), s.lines...)
	s.mu.Unlock()

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.Encode(lines)
	default:
		for _, line := range lines {
			fmt.Println(line)
		}
	}
}
