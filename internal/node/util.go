package node

import (
	"os"
	"os/user"
	"strings"
)

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func currentHost() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
