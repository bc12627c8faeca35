package node

import "regexp"

// identifierGrammar restricts node names to letters, digits, underscore,
// hyphen, and dot.
var identifierGrammar = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateName rejects node names that don't match the identifier
// grammar, a fatal configuration error.
func ValidateName(name string) error {
	if name == "" || !identifierGrammar.MatchString(name) {
		return &IdentityError{Name: name}
	}
	return nil
}
