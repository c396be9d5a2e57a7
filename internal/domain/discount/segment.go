package discount

import "context"

// Customer identifies the shopper for segmentation and per-customer usage
// checks. A nil *Customer means guest checkout.
type Customer struct {
	ID    int64
	Email string
}

// SegmentMatcher decides whether a customer belongs to any of a rule's target
// segments. The engine consults it for every automatic discount; a real
// segmentation service can be substituted without touching the orchestrator.
type SegmentMatcher interface {
	Matches(ctx context.Context, rule *Automatic, customer *Customer) bool
}

// MatchAllSegments accepts every customer, including guests. It is the
// default until a segmentation engine exists.
type MatchAllSegments struct{}

func (MatchAllSegments) Matches(context.Context, *Automatic, *Customer) bool { return true }
