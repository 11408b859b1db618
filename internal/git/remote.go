package git

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/waabox/circledeck/internal/domain"
)

// vcsByHost maps a remote host to the VCS segment of a CircleCI project slug.
var vcsByHost = map[string]string{
	"github.com":    "gh",
	"bitbucket.org": "bb",
}

// DetectProject reads the .git/config in the given directory and returns
// the CircleCI project built from the origin remote URL.
func DetectProject(dir string) (domain.Project, error) {
	configPath := filepath.Join(dir, ".git", "config")
	f, err := os.Open(configPath)
	if err != nil {
		return domain.Project{}, fmt.Errorf("could not open .git/config: %w", err)
	}
	defer f.Close()

	var inOrigin bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == `[remote "origin"]` {
			inOrigin = true
			continue
		}
		if inOrigin && strings.HasPrefix(line, "[") {
			break
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return ParseRemoteURL(strings.TrimSpace(parts[1]))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Project{}, fmt.Errorf("reading .git/config: %w", err)
	}
	return domain.Project{}, errors.New("no origin remote found in .git/config")
}

// ParseRemoteURL parses a git remote URL and returns the matching project.
// Supports HTTPS (https://github.com/owner/repo.git), scp-like SSH
// (git@github.com:owner/repo.git) and ssh:// URLs on GitHub and Bitbucket.
func ParseRemoteURL(rawURL string) (domain.Project, error) {
	normalized := strings.TrimSuffix(strings.TrimSpace(rawURL), ".git")

	var host, path string
	switch {
	case strings.HasPrefix(normalized, "git@"):
		parts := strings.SplitN(strings.TrimPrefix(normalized, "git@"), ":", 2)
		if len(parts) != 2 {
			return domain.Project{}, fmt.Errorf("invalid SSH remote URL: %s", rawURL)
		}
		host, path = parts[0], parts[1]
	case strings.HasPrefix(normalized, "ssh://"),
		strings.HasPrefix(normalized, "https://"),
		strings.HasPrefix(normalized, "http://"):
		withoutScheme := normalized[strings.Index(normalized, "://")+3:]
		parts := strings.SplitN(withoutScheme, "/", 2)
		if len(parts) != 2 {
			return domain.Project{}, fmt.Errorf("invalid remote URL: %s", rawURL)
		}
		host, path = parts[0], parts[1]
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		if colon := strings.Index(host, ":"); colon >= 0 {
			host = host[:colon]
		}
	default:
		return domain.Project{}, fmt.Errorf("unsupported remote URL format: %s", rawURL)
	}

	vcs, ok := vcsByHost[strings.ToLower(host)]
	if !ok {
		return domain.Project{}, fmt.Errorf("host %q is not supported by CircleCI", host)
	}
	ownerRepo := strings.Split(strings.Trim(path, "/"), "/")
	if len(ownerRepo) != 2 || ownerRepo[0] == "" || ownerRepo[1] == "" {
		return domain.Project{}, fmt.Errorf("invalid remote URL path: %s", path)
	}
	return domain.Project{VCS: vcs, Owner: ownerRepo[0], Name: ownerRepo[1]}, nil
}
