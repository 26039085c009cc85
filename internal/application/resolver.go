package application

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// Identifier is one deduplicated batch input and what it resolved to.
type Identifier struct {
	Input      string
	Repository model.RepositoryRef // Zero when Err is set.
	Err        error
}

// Valid reports whether the input resolved to a repository.
func (id Identifier) Valid() bool {
	return id.Err == nil
}

// Resolve parses a repository identifier into its canonical RepositoryRef.
// Accepted forms are https://github.com/<owner>/<name> and its equivalents:
// http or no scheme, a www. host, a trailing ".git" or "/", extra path
// segments, query strings, git@github.com:<owner>/<name>.git and a bare
// <owner>/<name>. Anything else fails with model.ErrInvalidRepositoryIdentifier.
func Resolve(identifier string) (model.RepositoryRef, error) {
	raw := strings.TrimSpace(identifier)
	if raw == "" {
		return model.RepositoryRef{}, fmt.Errorf("%w: empty identifier", model.ErrInvalidRepositoryIdentifier)
	}

	path, err := repositoryPath(raw)
	if err != nil {
		return model.RepositoryRef{}, fmt.Errorf("%w %q: %s", model.ErrInvalidRepositoryIdentifier, raw, err)
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return model.RepositoryRef{}, fmt.Errorf("%w %q: expected <owner>/<name>", model.ErrInvalidRepositoryIdentifier, raw)
	}

	owner := segments[0]
	name := strings.TrimSuffix(segments[1], ".git")

	if !ownerPattern.MatchString(owner) {
		return model.RepositoryRef{}, fmt.Errorf("%w %q: invalid owner %q", model.ErrInvalidRepositoryIdentifier, raw, owner)
	}
	if !namePattern.MatchString(name) || name == "." || name == ".." {
		return model.RepositoryRef{}, fmt.Errorf("%w %q: invalid repository name %q", model.ErrInvalidRepositoryIdentifier, raw, name)
	}

	return model.NewRepositoryRef(owner, name), nil
}

// repositoryPath extracts the "<owner>/<name>[/...]" part of an identifier.
func repositoryPath(raw string) (string, error) {
	lower := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(lower, "git@"):
		host, path, ok := strings.Cut(raw[len("git@"):], ":")
		if !ok {
			return "", fmt.Errorf("malformed ssh address")
		}
		if !isGitHubHost(host) {
			return "", fmt.Errorf("host %q is not github.com", host)
		}
		return path, nil

	case strings.Contains(raw, "://"):
		return urlPath(raw)

	case strings.HasPrefix(lower, "github.com/"), strings.HasPrefix(lower, "www.github.com/"):
		return urlPath("https://" + raw)

	default:
		bare := strings.TrimSuffix(raw, "/")
		if strings.Count(bare, "/") != 1 {
			return "", fmt.Errorf("not a GitHub URL or <owner>/<name> pair")
		}
		return bare, nil
	}
}

func urlPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "http", "ssh", "git":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if !isGitHubHost(u.Hostname()) {
		return "", fmt.Errorf("host %q is not github.com", u.Hostname())
	}

	return u.Path, nil
}

func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	return host == "github.com" || host == "www.github.com"
}

// ResolveAll resolves a batch of identifiers and removes duplicates, keeping
// the first-seen order. Inputs naming the same repository collapse onto the
// first spelling; identical invalid inputs collapse onto one entry.
func ResolveAll(identifiers []string) []Identifier {
	seen := make(map[string]bool, len(identifiers))
	resolved := make([]Identifier, 0, len(identifiers))

	for _, input := range identifiers {
		ref, err := Resolve(input)

		key := ref.CanonicalURL
		if err != nil {
			key = "invalid:" + strings.TrimSpace(input)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		resolved = append(resolved, Identifier{Input: input, Repository: ref, Err: err})
	}

	return resolved
}

// Repositories returns the resolved repositories of a batch in order.
func Repositories(ids []Identifier) []model.RepositoryRef {
	refs := make([]model.RepositoryRef, 0, len(ids))
	for _, id := range ids {
		if id.Valid() {
			refs = append(refs, id.Repository)
		}
	}
	return refs
}
