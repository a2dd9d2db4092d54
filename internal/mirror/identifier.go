package mirror

import (
	"strconv"
	"strings"
)

// Constraint keys of diffusion.repository.search.
const (
	ConstraintIDs       = "ids"
	ConstraintPHIDs     = "phids"
	ConstraintCallsigns = "callsigns"
)

const phidPrefix = "PHID-"

// Identifier names a forge repository by numeric id, PHID or callsign /
// short name. The zero value is not valid.
type Identifier struct {
	id   int64
	name string
}

// ID identifies a repository by its numeric id.
func ID(n int64) Identifier { return Identifier{id: n} }

// Name identifies a repository by PHID, callsign or short name.
func Name(s string) Identifier { return Identifier{name: strings.TrimSpace(s)} }

// ParseIdentifier classifies command line input: all-digit input is a
// numeric id, everything else a name.
func ParseIdentifier(s string) Identifier {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return ID(n)
	}
	return Name(s)
}

// Constraint returns the search constraint key the identifier is looked up
// by. Unrecognised strings fall back to callsigns.
func (i Identifier) Constraint() string {
	switch {
	case i.name == "":
		return ConstraintIDs
	case strings.HasPrefix(i.name, phidPrefix):
		return ConstraintPHIDs
	default:
		return ConstraintCallsigns
	}
}

// Value is the constraint value sent to the forge.
func (i Identifier) Value() any {
	if i.name == "" {
		return i.id
	}
	return i.name
}

func (i Identifier) String() string {
	if i.name == "" {
		return strconv.FormatInt(i.id, 10)
	}
	return i.name
}

// IsZero reports whether the identifier names nothing.
func (i Identifier) IsZero() bool { return i.name == "" && i.id <= 0 }
