package sspak

import (
	"fmt"
	"strings"
)

// GitRemote describes the git checkout a site was saved from
type GitRemote struct {
	Remote string
	// Branch is empty for a detached HEAD
	Branch string
	SHA    string
}

// Format returns the descriptor in its three line text form
func (g GitRemote) Format() []byte {
	return []byte(fmt.Sprintf("remote = %s\nbranch = %s\nsha = %s\n", g.Remote, g.Branch, g.SHA))
}

// ParseGitRemote parses the text form of a git remote descriptor.
// Every non-empty line must be of the form "key = value", split on the first "=".
func ParseGitRemote(data []byte) (GitRemote, error) {
	var g GitRemote
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" || strings.ContainsAny(key, " \t") {
			return GitRemote{}, fmt.Errorf("%w: bad line %q", ErrMalformedDescriptor, line)
		}
		value = strings.TrimSpace(value)

		switch key {
		case "remote":
			g.Remote = value
		case "branch":
			g.Branch = value
		case "sha":
			g.SHA = value
		}
	}

	if g.Remote == "" {
		return GitRemote{}, fmt.Errorf("%w: no remote", ErrMalformedDescriptor)
	}
	return g, nil
}
