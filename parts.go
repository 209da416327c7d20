package sspak

import "strings"

// Parts selects which parts of a site an operation transfers
type Parts struct {
	DB        bool
	Assets    bool
	GitRemote bool
}

// AllParts selects the database, the assets and the git remote
var AllParts = Parts{DB: true, Assets: true, GitRemote: true}

// Effective returns the selection to use: when nothing is selected, everything is
func (p Parts) Effective() Parts {
	if !p.DB && !p.Assets && !p.GitRemote {
		return AllParts
	}
	return p
}

// String returns the selected part names joined by commas
func (p Parts) String() string {
	names := make([]string, 0, 3)
	if p.DB {
		names = append(names, "db")
	}
	if p.Assets {
		names = append(names, "assets")
	}
	if p.GitRemote {
		names = append(names, "git-remote")
	}
	return strings.Join(names, ",")
}
