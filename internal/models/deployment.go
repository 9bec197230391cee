package models

// Deployment holds the generated deployment script and its metadata.
type Deployment struct {
	Script   string            `json:"script"`
	Metadata map[string]string `json:"metadata"`
}
