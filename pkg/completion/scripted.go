package completion

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/parley/pkg/events"
)

// StepKind tags one entry of a scripted turn.
type StepKind string

const (
	StepThinking StepKind = "thinking"
	StepContent  StepKind = "content"
	StepError    StepKind = "error"
	// StepGate blocks the stream until the step's channel is closed, which
	// lets tests hold a turn open while they poke at the controller.
	StepGate StepKind = "gate"
	// StepNotify closes the step's channel when reached, which lets tests
	// wait for the stream to progress past a known point.
	StepNotify StepKind = "notify"
)

type ScriptStep struct {
	Kind   StepKind
	Text   string
	Gate   <-chan struct{}
	Notify chan<- struct{}
}

func Thinking(text string) ScriptStep {
	return ScriptStep{Kind: StepThinking, Text: text}
}

func Content(text string) ScriptStep {
	return ScriptStep{Kind: StepContent, Text: text}
}

func Fail(reason string) ScriptStep {
	return ScriptStep{Kind: StepError, Text: reason}
}

func Gate(ch <-chan struct{}) ScriptStep {
	return ScriptStep{Kind: StepGate, Gate: ch}
}

func Notify(ch chan<- struct{}) ScriptStep {
	return ScriptStep{Kind: StepNotify, Notify: ch}
}

// ScriptedService replays a fixed delta script. Each Complete call plays the
// next script in sequence (the last one repeats), publishing events with
// correct terminal semantics: a Fail step ends the turn with an error event,
// otherwise a final event follows the last step.
type ScriptedService struct {
	scripts [][]ScriptStep
	calls   int
}

func NewScriptedService(scripts ...[]ScriptStep) *ScriptedService {
	return &ScriptedService{scripts: scripts}
}

// Script builds a single-turn script.
func Script(steps ...ScriptStep) []ScriptStep {
	return steps
}

// Calls reports how many turns have been played.
func (s *ScriptedService) Calls() int {
	return s.calls
}

func (s *ScriptedService) Complete(ctx context.Context, req Request) error {
	if len(s.scripts) == 0 {
		return errors.New("scripted service has no scripts")
	}
	idx := s.calls
	if idx >= len(s.scripts) {
		idx = len(s.scripts) - 1
	}
	s.calls++
	script := s.scripts[idx]

	metadata := events.EventMetadata{
		ID:             uuid.New(),
		ConversationID: req.ConversationID,
		TurnID:         req.TurnID,
		Model:          req.ModelID,
	}

	events.PublishEventToContext(ctx, events.NewStartEvent(metadata))

	completion := ""
	thinking := ""
	for _, step := range script {
		select {
		case <-ctx.Done():
			events.PublishEventToContext(ctx, events.NewInterruptEvent(metadata, completion))
			return ctx.Err()
		default:
		}

		switch step.Kind {
		case StepThinking:
			thinking += step.Text
			events.PublishEventToContext(ctx, events.NewThinkingPartialEvent(metadata, step.Text, thinking))
		case StepContent:
			completion += step.Text
			events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(metadata, step.Text, completion))
		case StepError:
			events.PublishEventToContext(ctx, events.NewErrorEvent(metadata, errors.New(step.Text)))
			return nil
		case StepGate:
			select {
			case <-step.Gate:
			case <-ctx.Done():
				events.PublishEventToContext(ctx, events.NewInterruptEvent(metadata, completion))
				return ctx.Err()
			}
		case StepNotify:
			close(step.Notify)
		}
	}

	events.PublishEventToContext(ctx, events.NewFinalEvent(metadata, completion))
	return nil
}

var _ Service = (*ScriptedService)(nil)
