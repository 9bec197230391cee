package agent

import "strings"

// Language describes the target language of generated code.
type Language struct {
	Name          string
	Ext           string
	StyleGuide    string
	TestFramework string
	Manifest      string
}

var languages = map[string]Language{
	"python":     {Name: "Python", Ext: "py", StyleGuide: "PEP 8", TestFramework: "pytest", Manifest: "requirements.txt"},
	"go":         {Name: "Go", Ext: "go", StyleGuide: "Effective Go and gofmt", TestFramework: "the standard testing package", Manifest: "go.mod"},
	"javascript": {Name: "JavaScript", Ext: "js", StyleGuide: "the Airbnb style guide", TestFramework: "Jest", Manifest: "package.json"},
	"typescript": {Name: "TypeScript", Ext: "ts", StyleGuide: "strict TypeScript", TestFramework: "Jest with ts-jest", Manifest: "package.json"},
	"java":       {Name: "Java", Ext: "java", StyleGuide: "the Google Java style guide", TestFramework: "JUnit 5", Manifest: "pom.xml"},
	"rust":       {Name: "Rust", Ext: "rs", StyleGuide: "rustfmt and clippy", TestFramework: "cargo test", Manifest: "Cargo.toml"},
}

// LookupLanguage returns the profile for name, case-insensitively. Unknown
// names get a generic profile that keeps the given name.
func LookupLanguage(name string) Language {
	key := strings.ToLower(strings.TrimSpace(name))
	if l, ok := languages[key]; ok {
		return l
	}
	if key == "" {
		return languages["python"]
	}
	return Language{Name: name, Ext: "txt", StyleGuide: "the idiomatic style of the language", TestFramework: "the standard test framework", Manifest: "a dependency manifest"}
}

// SupportedLanguages lists the names with a dedicated profile.
func SupportedLanguages() []string {
	return []string{"go", "java", "javascript", "python", "rust", "typescript"}
}
