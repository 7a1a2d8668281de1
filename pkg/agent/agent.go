// Package agent produces the assistant's reply for one caller turn. It owns
// the prompt, the conversation-aware retrieval query, the fixed fast-path
// replies that never reach a model, and the credential/model fallback
// ladder that keeps the assistant answering when a hosted-inference
// credential runs out of quota mid-call.
package agent

import "strings"

// Turn is one utterance in a conversation, caller or assistant.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Fixed replies. These are spoken verbatim, so they are phrased for voice:
// short, no formatting, no URLs.
const (
	// Greeting opens every call.
	Greeting = "Hello, this is Institute of Space Technology. How can I help you today?"

	// NoInfoReply is used when the model cannot ground an answer; it asks
	// for a callback number so a human can follow up.
	NoInfoReply = "I am sorry, I do not have that information right now. Please provide your phone number and our admissions office will call you back."

	// TechnicalDifficultyReply covers inference failures.
	TechnicalDifficultyReply = "I am sorry, we are having a technical issue right now. Please provide your phone number and our admissions office will call you back."

	// AdmissionsContactReply acknowledges a captured phone number.
	AdmissionsContactReply = "Thank you. Our admissions office will contact you soon."

	// clarifyReply handles empty or unintelligible transcripts.
	clarifyReply = "Sorry, I could not hear you clearly. Could you please repeat that?"

	// partingReply closes out thanks and goodbyes.
	partingReply = "You're welcome. Feel free to call again if you have more questions. Goodbye!"
)

// Reply is the outcome of one turn.
type Reply struct {
	Text string
	// Escalated means the reply asks the caller for a callback number;
	// the call layer then watches the next turns for a phone number.
	Escalated bool
	// Model is the model that produced Text; empty for fixed replies.
	Model string
}

// partingWords trigger the goodbye fast path when the whole (corrected)
// transcript is essentially just one of them.
var partingWords = []string{"thank you", "thanks", "bye", "goodbye", "that is all", "that's all"}

// isParting reports whether q is a bare thanks/goodbye rather than a
// question that happens to contain one.
func isParting(q string) bool {
	q = strings.TrimSpace(strings.Trim(q, ".,!?"))
	for _, w := range partingWords {
		if q == w {
			return true
		}
		if strings.HasPrefix(q, w) && len(q) <= len(w)+12 {
			return true
		}
	}
	return false
}

// escalationMarkers in a model reply mean the assistant is deflecting; the
// call layer should start listening for a callback number.
var escalationMarkers = []string{
	"technical issue",
	"cannot find",
	"can't find",
	"unable",
	"phone number",
	"provide your phone",
	"call you back",
}

func isEscalation(reply string) bool {
	r := strings.ToLower(reply)
	for _, m := range escalationMarkers {
		if strings.Contains(r, m) {
			return true
		}
	}
	return false
}

// referentialWords signal the query leans on the previous turn ("how much
// is it", "when does that start"); retrieval then includes the previous
// user query for context.
var referentialWords = []string{"it", "that", "this", "they", "those", "them", "there"}

func isReferential(q string) bool {
	for _, f := range strings.Fields(q) {
		f = strings.Trim(f, ".,!?")
		for _, w := range referentialWords {
			if f == w {
				return true
			}
		}
	}
	return false
}

// lastUserQuery returns the most recent caller utterance in history.
func lastUserQuery(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

// classify wraps a model reply in a Reply, detecting escalations.
func classify(text, model string) Reply {
	return Reply{Text: text, Escalated: isEscalation(text), Model: model}
}
