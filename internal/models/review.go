package models

// ReviewStatus is the approve/revise decision of a review.
type ReviewStatus string

const (
	ReviewStatusApproved      ReviewStatus = "approved"
	ReviewStatusNeedsRevision ReviewStatus = "needs_revision"
)

// FindingKind classifies a single review finding.
type FindingKind string

const (
	FindingError   FindingKind = "error"
	FindingWarning FindingKind = "warning"
	FindingInfo    FindingKind = "info"
	FindingSuccess FindingKind = "success"
)

// Finding is one observation made by the reviewer.
type Finding struct {
	Kind    FindingKind `json:"type"`
	Message string      `json:"message"`
}

// ReviewVerdict is the structured outcome of one review iteration.
type ReviewVerdict struct {
	Status      ReviewStatus `json:"status" validate:"required,oneof=approved needs_revision"`
	Score       float64      `json:"score" validate:"gte=0,lte=10"`
	Findings    []Finding    `json:"findings"`
	Suggestions []string     `json:"suggestions"`
}

// Approved reports whether the verdict accepts the code.
func (v ReviewVerdict) Approved() bool {
	return v.Status == ReviewStatusApproved
}
