package rag

// Rule forces one or more documents into the retrieved context whenever the
// query mentions any of its keywords. Rules are evaluated in order and
// matched documents keep that order, so put the most specific rules first.
type Rule struct {
	Keywords []string
	Docs     []string
}

// SynonymHint expands queries before ranking: when any trigger appears in
// the query, the expansion terms are appended. This compensates for the
// gap between spoken vocabulary ("how much does it cost") and document
// vocabulary ("fee structure per semester").
type SynonymHint struct {
	Triggers  []string
	Expansion string
}

// DefaultRules is the keyword→document table for the admissions corpus.
// Document names must match the files in the document store.
var DefaultRules = []Rule{
	{
		Keywords: []string{"fee", "fees", "cost", "tuition", "charges", "installment", "dues", "expensive"},
		Docs:     []string{"fee_structure.txt"},
	},
	{
		Keywords: []string{"scholarship", "financial aid", "need based", "merit based", "waiver", "stipend"},
		Docs:     []string{"scholarships.txt", "fee_structure.txt"},
	},
	{
		Keywords: []string{"admission", "apply", "application", "deadline", "entry test", "eligibility", "merit", "requirement"},
		Docs:     []string{"admissions.txt"},
	},
	{
		Keywords: []string{"program", "programs", "degree", "bs", "ms", "phd", "avionics", "aerospace", "astronomy", "department", "major"},
		Docs:     []string{"programs.json"},
	},
	{
		Keywords: []string{"hostel", "accommodation", "dormitory", "residence", "mess"},
		Docs:     []string{"hostel.txt"},
	},
	{
		Keywords: []string{"contact", "email", "phone", "address", "location", "campus", "office"},
		Docs:     []string{"contact.txt"},
	},
}

// DefaultBaseline is injected when no rule matches. Fee and program
// questions dominate admissions calls, so these two documents are a safe
// default grounding for vague or garbled queries.
var DefaultBaseline = []string{"fee_structure.txt", "programs.json"}

// DefaultSynonyms maps common spoken phrasings to document vocabulary.
var DefaultSynonyms = []SynonymHint{
	{
		Triggers:  []string{"cost", "how much", "price", "expensive"},
		Expansion: "fee fees tuition per semester",
	},
	{
		Triggers:  []string{"fee", "fees"},
		Expansion: "fee structure tuition semester charges",
	},
	{
		Triggers:  []string{"apply", "admission", "get in"},
		Expansion: "admission application eligibility deadline entry test",
	},
	{
		Triggers:  []string{"live", "stay", "room"},
		Expansion: "hostel accommodation residence",
	},
}
