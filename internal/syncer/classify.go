// Package syncer decides whether an incoming diff extends a book, is stale, or reveals
// a sequence gap, and drives the resync that re-anchors a gapped book.
package syncer

import "feedstate/internal/adapter"

// Decision is the outcome of classifying a diff against a watermark. DecisionPending
// is never returned by Classify; the controller uses it for diffs that reach an inline
// book before its snapshot.
type Decision uint8

const (
	_decision_beg Decision = iota
	DecisionStale
	DecisionApplicable
	DecisionGap
	DecisionPending
	_decision_end
)

func (d Decision) IsAvailable() bool {
	return d > _decision_beg && d < _decision_end
}

func (d Decision) String() string {
	switch d {
	case DecisionStale:
		return "stale"
	case DecisionApplicable:
		return "applicable"
	case DecisionGap:
		return "gap"
	case DecisionPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Classify compares a diff's update id range with the book watermark.
//
//	stale:      last <= watermark
//	applicable: first <= watermark+1 <= last
//	gap:        anything else
func Classify(watermark int64, d adapter.Diff) Decision {
	if d.LastUpdateID <= watermark {
		return DecisionStale
	}
	next := watermark + 1
	if d.FirstUpdateID <= next && next <= d.LastUpdateID {
		return DecisionApplicable
	}
	return DecisionGap
}
