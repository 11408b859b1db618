package domain

import (
	"fmt"
	"strings"
)

// Project identifies a CircleCI project by its slug, e.g. "gh/acme/app".
type Project struct {
	VCS   string // "gh", "bb" or "circleci"
	Owner string
	Name  string
}

// ParseProjectSlug splits a "vcs/owner/name" slug.
func ParseProjectSlug(slug string) (Project, error) {
	parts := strings.Split(strings.Trim(slug, "/"), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Project{}, fmt.Errorf("invalid project slug %q: expected vcs/owner/name", slug)
	}
	return Project{VCS: parts[0], Owner: parts[1], Name: parts[2]}, nil
}

// Slug returns the "vcs/owner/name" form used in API paths.
func (p Project) Slug() string {
	return p.VCS + "/" + p.Owner + "/" + p.Name
}

// IsZero reports whether no project has been set.
func (p Project) IsZero() bool {
	return p == Project{}
}
