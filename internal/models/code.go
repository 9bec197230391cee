package models

// CodeVersion tags a generated code artifact.
type CodeVersion string

const (
	CodeVersionInitial  CodeVersion = "initial"
	CodeVersionRevision CodeVersion = "revision"
	CodeVersionFinal    CodeVersion = "final"
)

// CodeArtifact is one generated source text. Each review iteration produces
// a new value; artifacts are never edited in place.
type CodeArtifact struct {
	Source    string      `json:"source"`
	Version   CodeVersion `json:"version"`
	Iteration int         `json:"iteration"`
}

// WithVersion returns a copy of the artifact carrying the given version tag.
func (c CodeArtifact) WithVersion(v CodeVersion) CodeArtifact {
	c.Version = v
	return c
}
