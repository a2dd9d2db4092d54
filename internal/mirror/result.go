package mirror

// Outcome is the terminal state of one reconciliation.
type Outcome string

const (
	OutcomeMirrored Outcome = "mirrored"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomeUpdated  Outcome = "updated"
)

// Result reports what happened to one repository.
type Result struct {
	Repo string  `json:"repo"           yaml:"repo"`
	Kind Outcome `json:"outcome"        yaml:"outcome"`
	// Descriptor is set for mirrored and updated outcomes.
	Descriptor *Descriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	// Reason is set for skipped outcomes.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Err    error  `json:"-"                yaml:"-"`
	DryRun bool   `json:"dry_run"          yaml:"dry_run"`
}

// Failed reports whether the reconciliation failed.
func (r Result) Failed() bool { return r.Kind == OutcomeFailed }

// ErrorText returns the failure message, or "".
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary counts outcomes across a batch.
type Summary struct {
	Total    int `json:"total"    yaml:"total"`
	Mirrored int `json:"mirrored" yaml:"mirrored"`
	Updated  int `json:"updated"  yaml:"updated"`
	Skipped  int `json:"skipped"  yaml:"skipped"`
	Failed   int `json:"failed"   yaml:"failed"`
}

// Add counts r.
func (s *Summary) Add(r Result) {
	s.Total++
	switch r.Kind {
	case OutcomeMirrored:
		s.Mirrored++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}
