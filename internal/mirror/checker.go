package mirror

import (
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/forge"
)

// MirrorExists reports whether repo already carries a mirror on the host: a
// URI whose effective address contains marker and does not end with
// targetSuffix. The suffix excludes the link being reconciled right now, so
// only a prior, distinct mirror counts.
func MirrorExists(repo forge.Repository, marker, targetSuffix string) bool {
	_, ok := existingMirror(repo, marker, targetSuffix)
	return ok
}

func existingMirror(repo forge.Repository, marker, targetSuffix string) (string, bool) {
	if marker == "" {
		return "", false
	}
	for _, u := range repo.URIs {
		addr := u.Effective
		if !strings.Contains(addr, marker) {
			continue
		}
		if targetSuffix != "" && strings.HasSuffix(addr, targetSuffix) {
			continue
		}
		return addr, true
	}
	return "", false
}

// linkPresent reports whether the exact mirror link is already attached and
// enabled.
func linkPresent(repo forge.Repository, address string) bool {
	for _, u := range repo.URIs {
		if u.Effective == address && !u.Disabled {
			return true
		}
	}
	return false
}
