package forge

import "strings"

// Public is the view policy of repositories anyone may read.
const Public = "public"

// Repository is a Diffusion repository as returned by
// diffusion.repository.search with the uris attachment.
type Repository struct {
	ID         int64  `json:"id"`
	PHID       string `json:"phid"`
	Name       string `json:"name"`
	Callsign   string `json:"callsign"`
	ShortName  string `json:"short_name"`
	Status     string `json:"status"`
	ViewPolicy string `json:"view_policy"`
	URIs       []URI  `json:"uris"`
}

// IsPublic reports whether anyone may view the repository.
func (r Repository) IsPublic() bool { return r.ViewPolicy == Public }

// URI is one address attached to a repository.
type URI struct {
	ID             int64  `json:"id"`
	PHID           string `json:"phid"`
	Effective      string `json:"effective"`
	Protocol       string `json:"protocol"`
	IO             string `json:"io"`
	Display        string `json:"display"`
	Disabled       bool   `json:"disabled"`
	Builtin        bool   `json:"builtin"`
	CredentialPHID string `json:"credential_phid"`
}

// Passphrase is a stored credential as returned by passphrase.query.
type Passphrase struct {
	ID   string `json:"id"`
	PHID string `json:"phid"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Transaction is one {type, value} pair of an edit call.
type Transaction struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// MirrorLink is the forge-side record declaring that a repository is pushed
// to an external address.
type MirrorLink struct {
	RepositoryPHID string
	URI            string
	CredentialPHID string
}

// Transactions returns the diffusion.uri.edit payload creating the link.
func (l MirrorLink) Transactions() []Transaction {
	return []Transaction{
		{Type: "repository", Value: l.RepositoryPHID},
		{Type: "uri", Value: l.URI},
		{Type: "io", Value: "mirror"},
		{Type: "display", Value: "never"},
		{Type: "disable", Value: false},
		{Type: "credential", Value: l.CredentialPHID},
	}
}

// protocolOf guesses the transport of a non-builtin URI.
func protocolOf(address string) string {
	if i := strings.Index(address, "://"); i > 0 {
		return strings.ToLower(address[:i])
	}
	if strings.Contains(address, "@") && strings.Contains(address, ":") {
		return "ssh"
	}
	return ""
}
