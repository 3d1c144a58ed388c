package domain

// Verdict is the outcome of evaluating a message against a scope's rule set.
type Verdict string

const (
	VerdictNoMatch       Verdict = "no_match"
	VerdictExactMatch    Verdict = "exact_match"
	VerdictSimilarMatch  Verdict = "similar_match"
	VerdictIndeterminate Verdict = "indeterminate"
)

// IsMatch reports whether the verdict should trigger moderation.
func (v Verdict) IsMatch() bool {
	return v == VerdictExactMatch || v == VerdictSimilarMatch
}

// CandidateFailure records why a candidate could not be fingerprinted.
type CandidateFailure struct {
	Index     int    `json:"index"`
	ContentID string `json:"content_id,omitempty"`
	Reason    string `json:"reason"`
}

// MatchResult is returned by the matching engine.
//
// For similar matches Distance is the distance of the first qualifying
// (reference, candidate) pair in iteration order, not necessarily the
// smallest distance in the rule set.
type MatchResult struct {
	Verdict            Verdict            `json:"verdict"`
	Seq                uint               `json:"seq,omitempty"`
	ContentID          string             `json:"content_id,omitempty"`
	CandidateContentID string             `json:"candidate_content_id,omitempty"`
	Distance           int                `json:"distance"`
	Unscorable         []CandidateFailure `json:"unscorable,omitempty"`
}
