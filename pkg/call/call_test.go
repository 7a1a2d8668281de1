package call

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/iterator"

	"github.com/admitline/admitline/pkg/agent"
	"github.com/admitline/admitline/pkg/kv"
)

// fixedResponder returns scripted replies in order.
type fixedResponder struct {
	replies []agent.Reply
	calls   int
}

func (f *fixedResponder) Generate(_ context.Context, _ []agent.Turn, _ string) agent.Reply {
	r := f.replies[f.calls%len(f.replies)]
	f.calls++
	return r
}

func newTestOrchestrator(t *testing.T, r Responder) *Orchestrator {
	t.Helper()
	store := kv.NewMemory()
	t.Cleanup(func() { store.Close() })
	return NewOrchestrator(r, NewStore(store))
}

func TestStartCallGreets(t *testing.T) {
	o := newTestOrchestrator(t, &fixedResponder{replies: []agent.Reply{{Text: "x"}}})
	c, err := o.StartCall(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Turns) != 1 || c.Turns[0].Content != agent.Greeting {
		t.Fatalf("Turns = %+v", c.Turns)
	}

	loaded, err := o.Store().GetCall(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != c.ID {
		t.Error("call record not persisted")
	}
}

func TestProcessTurnAppendsHistory(t *testing.T) {
	o := newTestOrchestrator(t, &fixedResponder{replies: []agent.Reply{{Text: "The fee is 150000."}}})
	c, _ := o.StartCall(context.Background())

	res, err := o.ProcessTurn(context.Background(), c.ID, "what is the fee")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply.Text != "The fee is 150000." {
		t.Errorf("Reply = %q", res.Reply.Text)
	}
	if res.Lead != nil {
		t.Error("plain turn should not capture a lead")
	}

	loaded, _ := o.Store().GetCall(context.Background(), c.ID)
	if len(loaded.Turns) != 3 {
		t.Fatalf("turns = %d, want greeting + user + assistant", len(loaded.Turns))
	}
}

func TestProcessTurnUnknownCall(t *testing.T) {
	o := newTestOrchestrator(t, &fixedResponder{replies: []agent.Reply{{Text: "x"}}})
	if _, err := o.ProcessTurn(context.Background(), "missing", "hello"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEscalationCapturesPhoneLead(t *testing.T) {
	r := &fixedResponder{replies: []agent.Reply{
		{Text: agent.NoInfoReply, Escalated: true},
	}}
	o := newTestOrchestrator(t, r)
	c, _ := o.StartCall(context.Background())

	// Turn 1: question the model cannot answer; assistant asks for a number.
	res, err := o.ProcessTurn(context.Background(), c.ID, "do you offer culinary arts")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reply.Escalated {
		t.Fatal("expected escalation")
	}
	loaded, _ := o.Store().GetCall(context.Background(), c.ID)
	if !loaded.AwaitingPhone {
		t.Fatal("escalation should arm the phone watch")
	}

	// Turn 2: caller provides a number; no model call, lead captured.
	res, err = o.ProcessTurn(context.Background(), c.ID, "my number is 0312-345 6789")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply.Text != agent.AdmissionsContactReply {
		t.Errorf("Reply = %q", res.Reply.Text)
	}
	if !res.Reply.Escalated {
		t.Error("capture turn hands the caller to a human; it must report escalated")
	}
	if res.Lead == nil {
		t.Fatal("expected a captured lead")
	}
	if res.Lead.Phone != "03123456789" {
		t.Errorf("Phone = %q", res.Lead.Phone)
	}
	if res.Lead.Context != "do you offer culinary arts" {
		t.Errorf("lead context = %q", res.Lead.Context)
	}
	if r.calls != 1 {
		t.Errorf("responder calls = %d; phone turn must bypass the model", r.calls)
	}

	leads, err := o.Store().Leads(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 || leads[0].Phone != "03123456789" {
		t.Fatalf("Leads = %+v", leads)
	}

	loaded, _ = o.Store().GetCall(context.Background(), c.ID)
	if loaded.AwaitingPhone {
		t.Error("phone watch should disarm after capture")
	}
	if !loaded.Escalated {
		t.Error("escalation flag must stay set on the record after capture")
	}
	if loaded.LeadID != res.Lead.ID {
		t.Error("call should reference its lead")
	}
}

func TestVolunteeredPhoneCaptured(t *testing.T) {
	r := &fixedResponder{replies: []agent.Reply{{Text: "x"}}}
	o := newTestOrchestrator(t, r)
	c, _ := o.StartCall(context.Background())

	res, err := o.ProcessTurn(context.Background(), c.ID, "call me at 03001234567 please")
	if err != nil {
		t.Fatal(err)
	}
	if res.Lead == nil || res.Lead.Phone != "03001234567" {
		t.Fatalf("Lead = %+v", res.Lead)
	}
	if r.calls != 0 {
		t.Error("phone turn must bypass the model")
	}
}

func TestEndCall(t *testing.T) {
	o := newTestOrchestrator(t, &fixedResponder{replies: []agent.Reply{{Text: "x"}}})
	c, _ := o.StartCall(context.Background())
	if err := o.EndCall(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}
	loaded, _ := o.Store().GetCall(context.Background(), c.ID)
	if loaded.EndedAt.IsZero() {
		t.Error("EndCall should stamp EndedAt")
	}
	if err := o.EndCall(context.Background(), "missing"); err != nil {
		t.Errorf("EndCall on unknown id = %v, want nil", err)
	}
}

func TestProcessTurnStream(t *testing.T) {
	o := newTestOrchestrator(t, &fixedResponder{replies: []agent.Reply{
		{Text: "The fee is 150000. You can pay in installments."},
	}})
	c, _ := o.StartCall(context.Background())

	it := o.ProcessTurnStream(context.Background(), c.ID, "what are the ees")
	var events []Event
	for {
		e, err := it.Next()
		if err == iterator.Done {
			break
		}
		events = append(events, e)
	}
	// transcript + 2 sentences + done
	if len(events) != 4 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Type != EventTranscript || events[0].Text != "what are the fees" {
		t.Errorf("transcript event = %+v", events[0])
	}
	if events[1].Type != EventSentence || events[1].Text != "The fee is 150000." {
		t.Errorf("first sentence = %+v", events[1])
	}
	if events[3].Type != EventDone {
		t.Errorf("last event = %+v", events[3])
	}
}

func TestProcessTurnStreamError(t *testing.T) {
	o := newTestOrchestrator(t, &fixedResponder{replies: []agent.Reply{{Text: "x"}}})
	it := o.ProcessTurnStream(context.Background(), "missing", "hello")
	e, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != EventError {
		t.Fatalf("event = %+v, want error event", e)
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"my number is 03123456789", "03123456789"},
		{"0312-345-6789", "03123456789"},
		{"0312 345 6789", "03123456789"},
		{"(0312) 3456789", "03123456789"},
		{"the fee is 150000", ""},
		{"no number here", ""},
	}
	for _, tt := range tests {
		if got := extractPhone(tt.in); got != tt.want {
			t.Errorf("extractPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
