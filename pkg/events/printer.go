package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// PrinterFunc returns a watermill handler that renders one turn's event
// stream to w. Content deltas are written as they arrive; thinking deltas are
// dimmed behind a marker line so the answer stays readable.
func PrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	inThinking := false

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		printHeader := func() error {
			if isFirst && name != "" {
				isFirst = false
				_, err := fmt.Fprintf(w, "\n%s:\n", name)
				return err
			}
			return nil
		}

		switch p_ := e.(type) {
		case *EventThinkingPartial:
			if err := printHeader(); err != nil {
				return err
			}
			if !inThinking {
				inThinking = true
				if _, err := fmt.Fprintf(w, "[thinking] "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s", p_.Delta); err != nil {
				return err
			}

		case *EventPartialCompletion:
			if err := printHeader(); err != nil {
				return err
			}
			if inThinking {
				inThinking = false
				if _, err := fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s", p_.Delta); err != nil {
				return err
			}

		case *EventFinal:
			inThinking = false
			if !strings.HasSuffix(p_.Text, "\n") {
				if _, err := fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}

		case *EventError:
			inThinking = false
			if _, err := fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString); err != nil {
				return err
			}

		case *EventInterrupt:
			inThinking = false
			if _, err := fmt.Fprintf(w, "\n[interrupted]\n"); err != nil {
				return err
			}
		}

		return nil
	}
}
