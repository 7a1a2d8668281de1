package call

import (
	"context"

	"google.golang.org/api/iterator"

	"github.com/admitline/admitline/pkg/speech"
)

// Event types emitted by a streamed turn.
const (
	EventTranscript = "transcript"
	EventSentence   = "sentence"
	EventDone       = "done"
	EventError      = "error"
)

// Event is one item in a streamed turn: the corrected transcript first,
// then each reply sentence, then done. On failure a single error event is
// emitted instead.
type Event struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EventIterator yields the events of one streamed turn: fixed head events,
// then one sentence event per segmented reply sentence, then fixed tail
// events.
type EventIterator struct {
	head      []Event
	sentences *speech.SentenceIterator
	tail      []Event
}

// Next returns the next event, or iterator.Done after the last one.
func (it *EventIterator) Next() (Event, error) {
	if len(it.head) > 0 {
		e := it.head[0]
		it.head = it.head[1:]
		return e, nil
	}
	if it.sentences != nil {
		if s, err := it.sentences.Next(); err == nil {
			return Event{Type: EventSentence, Text: s}, nil
		}
		it.sentences = nil
	}
	if len(it.tail) > 0 {
		e := it.tail[0]
		it.tail = it.tail[1:]
		return e, nil
	}
	return Event{}, iterator.Done
}

// ProcessTurnStream runs one turn and returns its events sentence by
// sentence, so the transport can start synthesis for the first sentence
// while later ones are still queued.
func (o *Orchestrator) ProcessTurnStream(ctx context.Context, callID, transcript string) *EventIterator {
	res, err := o.ProcessTurn(ctx, callID, transcript)
	if err != nil {
		return &EventIterator{head: []Event{{Type: EventError, Text: err.Error()}}}
	}
	return &EventIterator{
		head:      []Event{{Type: EventTranscript, Text: res.Transcript}},
		sentences: speech.Sentences(res.Reply.Text),
		tail:      []Event{{Type: EventDone}},
	}
}
