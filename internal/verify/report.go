package verify

import (
	"context"
	"sort"
)

// Report is the difference between the forge and the mirror.
type Report struct {
	Source string `json:"source" yaml:"source"`
	Mirror string `json:"mirror" yaml:"mirror"`
	// Matching counts refs present on both sides at the same object.
	Matching int `json:"matching" yaml:"matching"`
	// Missing refs exist on the forge only.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	// Stale refs point at a different object on the mirror.
	Stale []string `json:"stale,omitempty" yaml:"stale,omitempty"`
	// Extra refs exist on the mirror only.
	Extra []string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// InSync reports whether every forge ref is on the mirror at the same
// object. Extra mirror refs do not count.
func (r Report) InSync() bool { return len(r.Missing) == 0 && len(r.Stale) == 0 }

// Compare diffs two ref sets.
func Compare(source, mirror Refs) Report {
	var r Report
	for name, hash := range source {
		got, ok := mirror[name]
		switch {
		case !ok:
			r.Missing = append(r.Missing, name)
		case got != hash:
			r.Stale = append(r.Stale, name)
		default:
			r.Matching++
		}
	}
	for name := range mirror {
		if _, ok := source[name]; !ok {
			r.Extra = append(r.Extra, name)
		}
	}
	sort.Strings(r.Missing)
	sort.Strings(r.Stale)
	sort.Strings(r.Extra)
	return r
}

// Verifier lists both remotes and compares them.
type Verifier struct {
	lister Lister
}

// New returns a Verifier using l.
func New(l Lister) *Verifier { return &Verifier{lister: l} }

// Verify compares sourceURL with mirrorURL.
func (v *Verifier) Verify(ctx context.Context, sourceURL, mirrorURL string) (Report, error) {
	src, err := v.lister.List(ctx, sourceURL)
	if err != nil {
		return Report{}, err
	}
	dst, err := v.lister.List(ctx, mirrorURL)
	if err != nil {
		return Report{}, err
	}
	r := Compare(src, dst)
	r.Source = sourceURL
	r.Mirror = mirrorURL
	return r, nil
}
