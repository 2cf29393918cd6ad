// Package parser provides JSON event parsing for hook dispatch input.
package parser

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/velcrohq/velcro/pkg/hook"
)

var (
	// ErrEmptyInput is returned when the input is empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidJSON is returned when the input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// EventParser parses a hook event from a reader, normally stdin.
type EventParser struct {
	reader io.Reader
}

// NewEventParser creates an EventParser that reads from the given reader.
func NewEventParser(reader io.Reader) *EventParser {
	return &EventParser{
		reader: reader,
	}
}

// Parse reads the full input and decodes it into a hook.Event. The fallback
// event name is used when the payload omits hook_event_name (older hosts
// pass it as a CLI flag instead).
func (p *EventParser) Parse(fallback hook.EventName) (*hook.Event, error) {
	raw, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading event input")
	}

	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	var evt hook.Event
	if unmarshalErr := json.Unmarshal(raw, &evt); unmarshalErr != nil {
		return nil, errors.CombineErrors(ErrInvalidJSON, unmarshalErr)
	}

	evt.Raw = raw

	if evt.HookEventName == "" {
		evt.HookEventName = fallback
	}

	if !evt.HookEventName.IsValid() {
		return nil, errors.Newf("unknown hook event name: %q", evt.HookEventName)
	}

	return &evt, nil
}
