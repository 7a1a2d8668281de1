// Package call runs the conversation lifecycle: session state, turn
// orchestration, escalation to a human callback, and the persisted call and
// lead records the admissions office works from.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/admitline/admitline/pkg/agent"
	"github.com/admitline/admitline/pkg/kv"
)

// Call is one phone session and its transcript.
type Call struct {
	ID        string       `json:"id"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at,omitzero"`
	Turns     []agent.Turn `json:"turns"`
	// AwaitingPhone is set after an escalation reply; the next turns are
	// scanned for a callback number before going to the model.
	AwaitingPhone bool `json:"awaiting_phone,omitempty"`
	// Escalated is sticky: once any turn escalates it stays set, so the
	// record shows the call needed a human even after a lead is captured.
	Escalated bool   `json:"escalated,omitempty"`
	LeadID    string `json:"lead_id,omitempty"`
}

// Lead is a captured callback request.
type Lead struct {
	ID        string    `json:"id"`
	CallID    string    `json:"call_id"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	// Context is the caller's last question before escalating, so the
	// admissions office knows what to call back about.
	Context string `json:"context,omitempty"`
}

// Store persists calls and leads in a key-value store as JSON.
type Store struct {
	kv kv.Store
}

// NewStore wraps a key-value store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func callKey(id string) kv.Key { return kv.Key{"call", id} }
func leadKey(id string) kv.Key { return kv.Key{"lead", id} }

// SaveCall writes the call record.
func (s *Store) SaveCall(ctx context.Context, c *Call) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, callKey(c.ID), data)
}

// GetCall loads a call by ID. Returns kv.ErrNotFound if absent.
func (s *Store) GetCall(ctx context.Context, id string) (*Call, error) {
	data, err := s.kv.Get(ctx, callKey(id))
	if err != nil {
		return nil, err
	}
	var c Call
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("call: decode %s: %w", id, err)
	}
	return &c, nil
}

// SaveLead writes a lead record.
func (s *Store) SaveLead(ctx context.Context, l *Lead) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, leadKey(l.ID), data)
}

// Leads returns all captured leads, in key order.
func (s *Store) Leads(ctx context.Context) ([]*Lead, error) {
	var leads []*Lead
	for entry, err := range s.kv.List(ctx, kv.Key{"lead"}) {
		if err != nil {
			return nil, err
		}
		var l Lead
		if err := json.Unmarshal(entry.Value, &l); err != nil {
			return nil, fmt.Errorf("call: decode lead %s: %w", entry.Key, err)
		}
		leads = append(leads, &l)
	}
	return leads, nil
}

// Calls returns all call records, in key order.
func (s *Store) Calls(ctx context.Context) ([]*Call, error) {
	var calls []*Call
	for entry, err := range s.kv.List(ctx, kv.Key{"call"}) {
		if err != nil {
			return nil, err
		}
		var c Call
		if err := json.Unmarshal(entry.Value, &c); err != nil {
			return nil, fmt.Errorf("call: decode call %s: %w", entry.Key, err)
		}
		calls = append(calls, &c)
	}
	return calls, nil
}
