package model

import "strings"

// RepositoryRef identifies a GitHub repository by its canonical URL.
// Owner and Name are stored lower-cased so that equivalent spellings of the
// same repository compare equal.
type RepositoryRef struct {
	Owner        string
	Name         string
	CanonicalURL string
}

// NewRepositoryRef builds a RepositoryRef in canonical form.
func NewRepositoryRef(owner, name string) RepositoryRef {
	owner = strings.ToLower(owner)
	name = strings.ToLower(name)
	return RepositoryRef{
		Owner:        owner,
		Name:         name,
		CanonicalURL: "https://github.com/" + owner + "/" + name,
	}
}

// FullName returns "owner/name".
func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// FileStem returns "owner-name", used to name per-repository export files.
func (r RepositoryRef) FileStem() string {
	return r.Owner + "-" + r.Name
}

// IsZero reports whether the reference was never resolved.
func (r RepositoryRef) IsZero() bool {
	return r.CanonicalURL == ""
}
