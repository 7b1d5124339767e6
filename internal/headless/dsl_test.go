package headless

import (
	"strings"
	"testing"
)

func TestParseLine_AllVerbs(t *testing.T) {
	events, err := ParseLine(`type:hello, key:enter, wait:500ms, resize:80x24, assert:contains:foo, assert:not-contains:bar, assert:matches:^ok$, assert:state:connection_name=prod`)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if len(events) != 8 {
		t.Fatalf("ParseLine() returned %d events, want 8", len(events))
	}

	if events[0].Kind != EventType || events[0].Text != "hello" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Kind != EventKey || events[1].Key != "enter" {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Kind != EventWait || events[2].Wait != "500ms" {
		t.Errorf("event 2 = %+v", events[2])
	}
	if events[3].Kind != EventResize || events[3].Width != 80 || events[3].Height != 24 {
		t.Errorf("event 3 = %+v", events[3])
	}
	if events[4].Kind != EventAssertContains || events[4].Text != "foo" {
		t.Errorf("event 4 = %+v", events[4])
	}
	if events[5].Kind != EventAssertNotContains || events[5].Text != "bar" {
		t.Errorf("event 5 = %+v", events[5])
	}
	if events[6].Kind != EventAssertMatches || events[6].Pattern == nil {
		t.Errorf("event 6 = %+v", events[6])
	}
	if events[7].Kind != EventAssertState || events[7].StateField != "connection_name" || events[7].StateValue != "prod" {
		t.Errorf("event 7 = %+v", events[7])
	}
}

func TestParseLine_KeyWithModifiers(t *testing.T) {
	events, err := ParseLine("key:ctrl+c")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if events[0].Key != "c" || len(events[0].Mods) != 1 || events[0].Mods[0] != "ctrl" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestParseLine_BlankAndComment(t *testing.T) {
	for _, line := range []string{"", "   ", "# a comment"} {
		events, err := ParseLine(line)
		if err != nil || events != nil {
			t.Errorf("ParseLine(%q) = %v, %v; want nil, nil", line, events, err)
		}
	}
}

func TestParseLine_Cancel(t *testing.T) {
	events, err := ParseLine("cancel")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if events[0].Kind != EventCancel || events[0].Text != "last" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestParseLine_CancelWithID(t *testing.T) {
	events, err := ParseLine("cancel:req-7")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if events[0].Kind != EventCancel || events[0].Text != "req-7" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestParseLine_MalformedResize(t *testing.T) {
	if _, err := ParseLine("resize:bogus"); err == nil {
		t.Errorf("ParseLine() with malformed resize should error")
	}
}

func TestParseLine_UnknownVerb(t *testing.T) {
	if _, err := ParseLine("frobnicate:foo"); err == nil {
		t.Errorf("ParseLine() with unknown verb should error")
	}
}

func TestParseLine_AssertStateMissingEquals(t *testing.T) {
	if _, err := ParseLine("assert:state:connection_name"); err == nil {
		t.Errorf("ParseLine() with malformed assert:state should error")
	}
}

func TestParseScript_MultipleLines(t *testing.T) {
	script := "type:hello\n# comment\n\nkey:enter\nassert:contains:hello\n"
	events, err := ParseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ParseScript() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ParseScript() returned %d events, want 3", len(events))
	}
}

func TestEvalState_MatchesField(t *testing.T) {
	snapshot := `{"connection_name":"prod","queue_depth":2}`

	ok, err := EvalState(Event{StateField: "connection_name", StateValue: "prod"}, snapshot)
	if err != nil {
		t.Fatalf("EvalState() error = %v", err)
	}
	if !ok {
		t.Errorf("EvalState() = false, want true")
	}

	ok, err = EvalState(Event{StateField: "queue_depth", StateValue: "2"}, snapshot)
	if err != nil {
		t.Fatalf("EvalState() error = %v", err)
	}
	if !ok {
		t.Errorf("EvalState() for numeric field = false, want true")
	}

	ok, err = EvalState(Event{StateField: "connection_name", StateValue: "staging"}, snapshot)
	if err != nil {
		t.Fatalf("EvalState() error = %v", err)
	}
	if ok {
		t.Errorf("EvalState() = true, want false for mismatched value")
	}
}

func TestEvalState_MissingFieldIsFalse(t *testing.T) {
	ok, err := EvalState(Event{StateField: "nonexistent", StateValue: "x"}, `{"a":1}`)
	if err != nil {
		t.Fatalf("EvalState() error = %v", err)
	}
	if ok {
		t.Errorf("EvalState() for missing field = true, want false")
	}
}
