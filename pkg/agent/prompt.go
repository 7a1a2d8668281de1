package agent

import (
	"strings"

	"github.com/admitline/admitline/pkg/groq"
)

// historyWindow is how many recent turns ride along in the prompt. Six
// turns cover a typical clarification exchange without burning context
// budget on the whole call.
const historyWindow = 6

// systemPrompt defines the assistant persona and answer discipline. The
// reply is spoken aloud, so it forbids formatting and caps length; it also
// pins the escalation phrasing so reply classification stays reliable.
const systemPrompt = `You are a polite phone receptionist for the Institute of Space Technology (IST) in Islamabad. You answer admission-related questions over a voice call.

Rules:
- Answer ONLY from the reference information below. Never invent fees, dates, or program names.
- Keep answers short, at most two or three sentences. The answer is spoken aloud.
- Plain sentences only: no lists, no markdown, no URLs, no special characters.
- If the reference information does not contain the answer, say exactly: "` + NoInfoReply + `"
- For yes/no questions, start with yes or no, then one short supporting sentence.
- Say amounts in words the way they are written in the reference information; do not convert between lakhs and thousands.
- Answer directly with the figures yourself; never tell the caller to check a file or a website.
- Do not mention the reference information or that you are an AI.`

// DefaultFacts are the authoritative corrections and procedures the
// retrieved documents alone get wrong or cannot express: the exact program
// list callers mishear most, the line to hold when an answer is challenged,
// and the admission aggregate formula. Maintained alongside the document
// corpus; override with WithFacts when the corpus changes.
const DefaultFacts = `- The Electrical Engineering department offers exactly two programs: BS Electrical Engineering and BS Computer Engineering. Never name any other program for that department.
- If the caller says you are wrong or challenges an answer, reply: "This information comes from the official sources of the university." and keep your answer unchanged.
- When the caller gives their Matric, FSC, and entry test marks for an engineering program, calculate the aggregate immediately using (Matric/1100 x 10) + (FSC/1100 x 40) + (Entry Test/100 x 50) and state only the resulting number, for example "Your aggregate is about 49.1."`

// buildMessages assembles the chat request for one turn: system prompt with
// pinned facts and retrieved context, a recent-history window, then the
// caller's query.
func buildMessages(context, facts string, history []Turn, query string) []groq.Message {
	var sys strings.Builder
	sys.WriteString(systemPrompt)
	if facts != "" {
		sys.WriteString("\n\nAuthoritative facts, these override the reference information:\n")
		sys.WriteString(facts)
	}
	if context != "" {
		sys.WriteString("\n\nReference information:\n")
		sys.WriteString(context)
	}

	msgs := []groq.Message{{Role: "system", Content: sys.String()}}
	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	for _, t := range history[start:] {
		role := t.Role
		if role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, groq.Message{Role: role, Content: t.Content})
	}
	return append(msgs, groq.Message{Role: "user", Content: query})
}
