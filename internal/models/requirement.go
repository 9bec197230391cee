package models

// StructuredRequirement is the structurer's view of a raw requirement.
type StructuredRequirement struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Constraints []string `json:"constraints"`
	EdgeCases   []string `json:"edge_cases"`
}

// Requirement pairs the raw input text with its structured form.
type Requirement struct {
	Raw        string                `json:"raw"`
	Structured StructuredRequirement `json:"structured"`
}
