package verify

import (
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/forge"
)

// SourceURL picks the forge address to read refs from: the first enabled
// HTTP(S) URI that is not itself a mirror, else fallback.
func SourceURL(repo forge.Repository, fallback string) string {
	for _, u := range repo.URIs {
		if u.Disabled || u.IO == "mirror" {
			continue
		}
		if strings.HasPrefix(u.Effective, "https://") || strings.HasPrefix(u.Effective, "http://") {
			return u.Effective
		}
	}
	return fallback
}
