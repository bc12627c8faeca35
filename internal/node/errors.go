// Package node implements Node identity, the node-scoped apply/test/verify
// entry points, and the cooperative lock that guards a host against
// concurrent operators.
package node

// LockInfo is the content of the lock file's info payload. Unknown
// fields must be tolerated, so this only declares the three named ones
// and ignores the rest on decode.
type LockInfo struct {
	Date float64 `json:"date"`
	User string  `json:"user"`
	Host string  `json:"host"`
}

// AlreadyLockedError is raised when lock acquisition finds an existing,
// uncontested lock directory.
type AlreadyLockedError struct {
	Info LockInfo
}

func (e *AlreadyLockedError) Error() string {
	return "node already locked by " + e.Info.User + "@" + e.Info.Host
}

// IdentityError is a fatal configuration error: the node name does not
// match the identifier grammar.
type IdentityError struct {
	Name string
}

func (e *IdentityError) Error() string {
	return "invalid node name: " + e.Name
}
