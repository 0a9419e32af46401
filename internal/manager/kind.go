package manager

// Kind identifies a supported package manager.
type Kind string

const (
	Cargo  Kind = "cargo"
	Maven  Kind = "maven"
	Gradle Kind = "gradle"
	Npm    Kind = "npm"
	Pip    Kind = "pip"
	Docker Kind = "docker"
)

// All returns every supported manager in display order.
func All() []Kind {
	return []Kind{Cargo, Maven, Gradle, Npm, Pip, Docker}
}

// ParseKind converts a string to a Kind, returning false if unknown.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "cargo":
		return Cargo, true
	case "maven", "mvn":
		return Maven, true
	case "gradle":
		return Gradle, true
	case "npm":
		return Npm, true
	case "pip":
		return Pip, true
	case "docker":
		return Docker, true
	default:
		return "", false
	}
}
