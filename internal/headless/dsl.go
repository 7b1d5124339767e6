// Package headless implements the headless event DSL used for
// scripted, non-rendering execution: a comma-separated stream of typed
// events (or one per line in a script file) that drives input and
// checks assertions against a JSON state snapshot.
package headless

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// EventKind enumerates the DSL's event types.
type EventKind string

const (
	EventType          EventKind = "type"
	EventKey           EventKind = "key"
	EventWait          EventKind = "wait"
	EventResize        EventKind = "resize"
	EventAssertContains EventKind = "assert_contains"
	EventAssertNotContains EventKind = "assert_not_contains"
	EventAssertMatches  EventKind = "assert_matches"
	EventAssertState    EventKind = "assert_state"
	EventCancel         EventKind = "cancel"
)

// Event is one parsed DSL instruction.
type Event struct {
	Kind EventKind

	Text  string // type:<text>, assert:contains/not-contains:<str>
	Key   string // key:<name[+mods]>
	Mods  []string
	Wait  string // raw duration, e.g. "500ms"
	Width, Height int

	Pattern *regexp.Regexp // assert:matches:<regex>

	StateField string // assert:state:<field>=<value>
	StateValue string
}

var resizeRE = regexp.MustCompile(`^(\d+)x(\d+)$`)

// ParseLine parses one comma-separated stream, or one line of a script
// file, into a slice of Events. Blank lines and lines beginning with
// `#` are ignored (script-file comment convention).
func ParseLine(line string) ([]Event, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	var events []Event
	for _, tok := range strings.Split(line, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		e, err := parseEvent(tok)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// ParseScript parses a full script file, one or more events per line.
func ParseScript(r io.Reader) ([]Event, error) {
	var all []Event
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		events, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

func parseEvent(tok string) (Event, error) {
	if tok == "cancel" {
		return Event{Kind: EventCancel, Text: "last"}, nil
	}
	if id, ok := strings.CutPrefix(tok, "cancel:"); ok {
		return Event{Kind: EventCancel, Text: id}, nil
	}

	parts := strings.SplitN(tok, ":", 2)
	if len(parts) != 2 {
		return Event{}, errMalformed(tok)
	}
	verb, arg := parts[0], parts[1]

	switch verb {
	case "type":
		return Event{Kind: EventType, Text: arg}, nil

	case "key":
		keyParts := strings.Split(arg, "+")
		return Event{Kind: EventKey, Key: keyParts[len(keyParts)-1], Mods: keyParts[:len(keyParts)-1]}, nil

	case "wait":
		return Event{Kind: EventWait, Wait: arg}, nil

	case "resize":
		m := resizeRE.FindStringSubmatch(arg)
		if m == nil {
			return Event{}, errMalformed(tok)
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		return Event{Kind: EventResize, Width: w, Height: h}, nil

	case "assert":
		return parseAssert(arg, tok)

	default:
		return Event{}, errMalformed(tok)
	}
}

func parseAssert(arg, original string) (Event, error) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return Event{}, errMalformed(original)
	}
	kind, rest := parts[0], parts[1]

	switch kind {
	case "contains":
		return Event{Kind: EventAssertContains, Text: rest}, nil
	case "not-contains":
		return Event{Kind: EventAssertNotContains, Text: rest}, nil
	case "matches":
		re, err := regexp.Compile(rest)
		if err != nil {
			return Event{}, apperrors.ValidationError("assert:matches", err.Error())
		}
		return Event{Kind: EventAssertMatches, Pattern: re}, nil
	case "state":
		kv := strings.SplitN(rest, "=", 2)
		if len(kv) != 2 {
			return Event{}, errMalformed(original)
		}
		return Event{Kind: EventAssertState, StateField: kv[0], StateValue: kv[1]}, nil
	default:
		return Event{}, errMalformed(original)
	}
}

func errMalformed(tok string) error {
	return apperrors.ValidationError("headless_event", fmt.Sprintf("malformed event %q", tok))
}

// EvalState evaluates an assert:state: event against a JSON state
// snapshot using a gojq query of the form `.<field>`.
func EvalState(e Event, snapshotJSON string) (bool, error) {
	var snapshot interface{}
	if err := json.Unmarshal([]byte(snapshotJSON), &snapshot); err != nil {
		return false, err
	}

	query, err := gojq.Parse("." + e.StateField)
	if err != nil {
		return false, apperrors.ValidationError("assert:state", err.Error())
	}

	iter := query.Run(snapshot)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, ok := v.(error); ok {
		return false, err
	}
	return fmt.Sprintf("%v", v) == e.StateValue, nil
}
