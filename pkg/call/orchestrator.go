package call

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/admitline/admitline/pkg/agent"
	"github.com/admitline/admitline/pkg/rag"
)

// Responder produces the assistant reply for one turn.
// *agent.Generator satisfies this interface.
type Responder interface {
	Generate(ctx context.Context, history []agent.Turn, transcript string) agent.Reply
}

// phonePattern matches a Pakistani mobile number (03xx xxxxxxx), with
// optional separators between groups.
var phonePattern = regexp.MustCompile(`03\d{9}`)

// extractPhone returns the first mobile number in text, digits only, or "".
func extractPhone(text string) string {
	compact := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(text)
	return phonePattern.FindString(compact)
}

// TurnResult is the outcome of one processed caller turn.
type TurnResult struct {
	// Transcript is the caller's utterance after mishearing correction.
	Transcript string
	Reply      agent.Reply
	// Lead is non-nil when this turn captured a callback number.
	Lead *Lead
}

// Orchestrator drives calls: it holds the responder and the record store,
// and applies the escalation state machine around each turn.
type Orchestrator struct {
	responder Responder
	store     *Store
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(responder Responder, store *Store) *Orchestrator {
	return &Orchestrator{responder: responder, store: store}
}

// StartCall opens a session and returns it with the greeting as the first
// assistant turn.
func (o *Orchestrator) StartCall(ctx context.Context) (*Call, error) {
	c := &Call{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Turns:     []agent.Turn{{Role: "assistant", Content: agent.Greeting}},
	}
	if err := o.store.SaveCall(ctx, c); err != nil {
		return nil, fmt.Errorf("call: start: %w", err)
	}
	slog.Info("call started", "call", c.ID)
	return c, nil
}

// ProcessTurn handles one caller utterance.
//
// If the previous reply escalated, the transcript is first scanned for a
// callback number; a match captures a lead and acknowledges without going
// to the model. A number volunteered at any other time is captured too,
// since callers sometimes offer it unprompted. Otherwise the responder
// produces the reply, and an escalating reply arms the phone watch for the
// following turns.
func (o *Orchestrator) ProcessTurn(ctx context.Context, callID, transcript string) (*TurnResult, error) {
	c, err := o.store.GetCall(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("call: load %s: %w", callID, err)
	}
	transcript = rag.CorrectMishearings(strings.TrimSpace(transcript))

	if phone := extractPhone(transcript); phone != "" {
		lead := &Lead{
			ID:        uuid.NewString(),
			CallID:    c.ID,
			Phone:     phone,
			CreatedAt: time.Now().UTC(),
			Context:   lastQuestion(c.Turns),
		}
		if err := o.store.SaveLead(ctx, lead); err != nil {
			return nil, fmt.Errorf("call: save lead: %w", err)
		}
		// The capture turn is itself part of the escalation: the caller
		// is being handed to a human, so the flag rides on the reply and
		// sticks on the record.
		reply := agent.Reply{Text: agent.AdmissionsContactReply, Escalated: true}
		c.AwaitingPhone = false
		c.Escalated = true
		c.LeadID = lead.ID
		c.Turns = append(c.Turns,
			agent.Turn{Role: "user", Content: transcript},
			agent.Turn{Role: "assistant", Content: reply.Text},
		)
		if err := o.store.SaveCall(ctx, c); err != nil {
			return nil, fmt.Errorf("call: save: %w", err)
		}
		slog.Info("lead captured", "call", c.ID, "lead", lead.ID)
		return &TurnResult{Transcript: transcript, Reply: reply, Lead: lead}, nil
	}

	reply := o.responder.Generate(ctx, c.Turns, transcript)
	if reply.Escalated {
		c.AwaitingPhone = true
		c.Escalated = true
	}
	c.Turns = append(c.Turns,
		agent.Turn{Role: "user", Content: transcript},
		agent.Turn{Role: "assistant", Content: reply.Text},
	)
	if err := o.store.SaveCall(ctx, c); err != nil {
		return nil, fmt.Errorf("call: save: %w", err)
	}
	return &TurnResult{Transcript: transcript, Reply: reply}, nil
}

// EndCall closes the session. Unknown IDs are not an error; hangup
// notifications can race session expiry.
func (o *Orchestrator) EndCall(ctx context.Context, callID string) error {
	c, err := o.store.GetCall(ctx, callID)
	if err != nil {
		return nil
	}
	c.EndedAt = time.Now().UTC()
	if err := o.store.SaveCall(ctx, c); err != nil {
		return fmt.Errorf("call: end: %w", err)
	}
	slog.Info("call ended", "call", c.ID, "turns", len(c.Turns), "lead", c.LeadID != "")
	return nil
}

// Store exposes the record store for read endpoints.
func (o *Orchestrator) Store() *Store { return o.store }

// lastQuestion returns the most recent caller turn, for lead context.
func lastQuestion(turns []agent.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			return turns[i].Content
		}
	}
	return ""
}
