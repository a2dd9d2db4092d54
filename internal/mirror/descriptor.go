package mirror

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/forge"
)

// Target is where mirrors are pushed: <SSHPrefix>:<Org>/<name>.git.
type Target struct {
	Org       string
	SSHPrefix string
}

// Address returns the mirror address of name.
func (t Target) Address(name string) string {
	return fmt.Sprintf("%s:%s/%s.git", t.SSHPrefix, t.Org, name)
}

// Overrides replaces derived descriptor fields. Empty fields are ignored.
type Overrides struct {
	Name        string
	Description string
	URL         string
}

// Descriptor is the normalised view of a repository used for one
// reconciliation attempt.
type Descriptor struct {
	PHID        string `json:"phid"        yaml:"phid"`
	Description string `json:"description" yaml:"description"`
	URL         string `json:"url"         yaml:"url"`
	Name        string `json:"name"        yaml:"name"`
	MirrorURL   string `json:"url_github"  yaml:"url_github"`
}

// BuildDescriptor derives the descriptor of repo. Name precedence is short
// name, callsign, then R<id>; the canonical URL follows the forge's path
// for whichever was used.
func BuildDescriptor(repo forge.Repository, forgeURL string, target Target, o Overrides) (Descriptor, error) {
	base := strings.TrimRight(forgeURL, "/") + "/"

	var name, url string
	switch {
	case repo.ShortName != "":
		name = repo.ShortName
		url = base + "source/" + repo.ShortName + "/"
	case repo.Callsign != "":
		name = repo.Callsign
		url = base + "diffusion/" + repo.Callsign + "/"
	case repo.ID > 0:
		id := strconv.FormatInt(repo.ID, 10)
		name = "R" + id
		url = base + "diffusion/" + id + "/"
	}
	if o.Name != "" {
		name = o.Name
	}
	if o.URL != "" {
		url = o.URL
	}
	if name == "" || url == "" {
		return Descriptor{}, &Error{
			Kind: KindDescriptor,
			Repo: repo.PHID,
			Err:  fmt.Errorf("repository has no short name, callsign or id"),
		}
	}

	description := repo.Name
	if o.Description != "" {
		description = o.Description
	}
	if description == "" {
		description = name
	}

	return Descriptor{
		PHID:        repo.PHID,
		Description: description,
		URL:         url,
		Name:        name,
		MirrorURL:   target.Address(name),
	}, nil
}
