package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Conduit method names.
const (
	MethodRepositorySearch = "diffusion.repository.search"
	MethodPassphraseQuery  = "passphrase.query"
	MethodURIEdit          = "diffusion.uri.edit"
	MethodPing             = "conduit.ping"
)

// pageLimit is the largest page diffusion.repository.search accepts.
const pageLimit = 100

// RepositorySearch looks repositories up by constraint or saved query.
type RepositorySearch struct {
	// Constraints maps a constraint key (ids, phids, callsigns) to values.
	Constraints map[string]any
	// QueryKey selects a saved query (builtin or custom) instead.
	QueryKey   string
	After      string
	Limit      int
	AttachURIs bool
}

// RepositoryPage is one page of search results.
type RepositoryPage struct {
	Repositories []Repository
	// After is the cursor of the next page, empty on the last one.
	After string
}

func (RepositorySearch) method() string { return MethodRepositorySearch }

func (r RepositorySearch) params() map[string]any {
	p := map[string]any{}
	if len(r.Constraints) > 0 {
		p["constraints"] = r.Constraints
	}
	if r.QueryKey != "" {
		p["queryKey"] = r.QueryKey
	}
	if r.After != "" {
		p["after"] = r.After
	}
	if r.Limit > 0 {
		p["limit"] = r.Limit
	}
	if r.AttachURIs {
		p["attachments"] = map[string]bool{"uris": true}
	}
	return p
}

type wireRepository struct {
	ID     int64  `json:"id"`
	PHID   string `json:"phid"`
	Fields struct {
		Name      string  `json:"name"`
		Callsign  *string `json:"callsign"`
		ShortName *string `json:"shortName"`
		Status    string  `json:"status"`
		Policy    struct {
			View string `json:"view"`
		} `json:"policy"`
	} `json:"fields"`
	Attachments struct {
		URIs struct {
			URIs []wireURI `json:"uris"`
		} `json:"uris"`
	} `json:"attachments"`
}

type wireURI struct {
	ID     int64  `json:"id"`
	PHID   string `json:"phid"`
	Fields struct {
		URI struct {
			Effective string `json:"effective"`
		} `json:"uri"`
		IO struct {
			Effective string `json:"effective"`
		} `json:"io"`
		Display struct {
			Effective string `json:"effective"`
		} `json:"display"`
		CredentialPHID *string `json:"credentialPHID"`
		Disabled       bool    `json:"disabled"`
		Builtin        struct {
			Protocol   *string `json:"protocol"`
			Identifier *string `json:"identifier"`
		} `json:"builtin"`
	} `json:"fields"`
}

func (RepositorySearch) decode(raw json.RawMessage) (RepositoryPage, error) {
	var res struct {
		Data   []wireRepository `json:"data"`
		Cursor struct {
			After *string `json:"after"`
		} `json:"cursor"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return RepositoryPage{}, err
	}
	page := RepositoryPage{Repositories: make([]Repository, 0, len(res.Data))}
	for _, w := range res.Data {
		page.Repositories = append(page.Repositories, w.normalize())
	}
	if res.Cursor.After != nil {
		page.After = *res.Cursor.After
	}
	return page, nil
}

func (w wireRepository) normalize() Repository {
	repo := Repository{
		ID:         w.ID,
		PHID:       w.PHID,
		Name:       w.Fields.Name,
		Callsign:   deref(w.Fields.Callsign),
		ShortName:  deref(w.Fields.ShortName),
		Status:     w.Fields.Status,
		ViewPolicy: w.Fields.Policy.View,
	}
	for _, u := range w.Attachments.URIs.URIs {
		uri := URI{
			ID:             u.ID,
			PHID:           u.PHID,
			Effective:      u.Fields.URI.Effective,
			IO:             u.Fields.IO.Effective,
			Display:        u.Fields.Display.Effective,
			Disabled:       u.Fields.Disabled,
			CredentialPHID: deref(u.Fields.CredentialPHID),
			Builtin:        u.Fields.Builtin.Protocol != nil,
		}
		if uri.Builtin {
			uri.Protocol = *u.Fields.Builtin.Protocol
		} else {
			uri.Protocol = protocolOf(uri.Effective)
		}
		repo.URIs = append(repo.URIs, uri)
	}
	return repo
}

// PassphraseQuery looks stored credentials up by id.
type PassphraseQuery struct {
	IDs []string
}

func (PassphraseQuery) method() string { return MethodPassphraseQuery }

func (q PassphraseQuery) params() map[string]any {
	return map[string]any{"ids": q.IDs}
}

// decode returns entries in response order. The mapping is keyed by PHID;
// Conduit encodes an empty one as an empty JSON list.
func (PassphraseQuery) decode(raw json.RawMessage) ([]Passphrase, error) {
	var res struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(res.Data)
	if len(data) == 0 || data[0] == '[' || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []Passphrase
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return nil, err
		}
		var p Passphrase
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
		if p.PHID == "" {
			p.PHID, _ = key.(string)
		}
		out = append(out, p)
	}
	return out, nil
}

// URIEdit applies transactions to a repository URI, creating one when no
// object identifier is given.
type URIEdit struct {
	ObjectIdentifier string
	Transactions     []Transaction
}

func (URIEdit) method() string { return MethodURIEdit }

func (e URIEdit) params() map[string]any {
	p := map[string]any{"transactions": e.Transactions}
	if e.ObjectIdentifier != "" {
		p["objectIdentifier"] = e.ObjectIdentifier
	}
	return p
}

// decode returns the PHID of the edited URI.
func (URIEdit) decode(raw json.RawMessage) (string, error) {
	var res struct {
		Object struct {
			PHID string `json:"phid"`
		} `json:"object"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", err
	}
	return res.Object.PHID, nil
}

// Ping checks connectivity and the token.
type Ping struct{}

func (Ping) method() string         { return MethodPing }
func (Ping) params() map[string]any { return map[string]any{} }

func (Ping) decode(raw json.RawMessage) (string, error) {
	var host string
	if err := json.Unmarshal(raw, &host); err != nil {
		return "", err
	}
	return host, nil
}

// Repositories returns the repositories matching one constraint, with URIs
// attached.
func (c *Client) Repositories(ctx context.Context, constraint string, values []any) ([]Repository, error) {
	page, err := Send(ctx, c, RepositorySearch{
		Constraints: map[string]any{constraint: values},
		AttachURIs:  true,
	})
	if err != nil {
		return nil, err
	}
	return page.Repositories, nil
}

// Passphrases resolves credential ids, in the order the forge returned them.
func (c *Client) Passphrases(ctx context.Context, ids []string) ([]Passphrase, error) {
	return Send(ctx, c, PassphraseQuery{IDs: ids})
}

// CreateMirrorLink writes the mirror URI for link and returns its PHID.
func (c *Client) CreateMirrorLink(ctx context.Context, link MirrorLink) (string, error) {
	return Send(ctx, c, URIEdit{Transactions: link.Transactions()})
}

// QueryRepositoryPHIDs returns the PHIDs of every repository matched by the
// saved query, following the result cursor to the end.
func (c *Client) QueryRepositoryPHIDs(ctx context.Context, queryKey string) ([]string, error) {
	var phids []string
	after := ""
	for {
		page, err := Send(ctx, c, RepositorySearch{QueryKey: queryKey, After: after, Limit: pageLimit})
		if err != nil {
			return nil, fmt.Errorf("listing saved query %q: %w", queryKey, err)
		}
		for _, r := range page.Repositories {
			phids = append(phids, r.PHID)
		}
		if page.After == "" || page.After == after {
			return phids, nil
		}
		after = page.After
	}
}

// Ping returns the host name the forge reports for itself.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return Send(ctx, c, Ping{})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
