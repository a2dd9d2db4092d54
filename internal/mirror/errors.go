package mirror

import (
	"errors"
	"fmt"

	"github.com/CosmoTheDev/forgemirror/internal/host"
)

// Kind classifies a per-repository failure.
type Kind string

const (
	KindPolicy      Kind = "policy_violation"
	KindDescriptor  Kind = "descriptor_error"
	KindRemoteWrite Kind = "remote_write_error"
	KindCredential  Kind = "credential_error"
	KindLinkWrite   Kind = "link_write_error"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrPolicyViolation = errors.New("repository is not public")
	ErrDescriptor      = errors.New("cannot derive repository descriptor")
	ErrRemoteWrite     = errors.New("host rejected repository write")
	ErrCredential      = errors.New("cannot resolve push credential")
	ErrLinkWrite       = errors.New("forge rejected mirror link")
)

// ErrSkipped is matched by the *SkipError Reconciler.Mirror returns when
// the forge already declares a mirror for the repository.
var ErrSkipped = errors.New("mirror already declared")

// SkipError reports a repository left untouched because the forge already
// declares a mirror at Address.
type SkipError struct {
	Repo    string
	Address string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Repo, ErrSkipped, e.Address)
}

// Is matches ErrSkipped.
func (e *SkipError) Is(target error) bool { return target == ErrSkipped }

// Reason is the human readable skip reason reported in results.
func (e *SkipError) Reason() string { return "existing mirror " + e.Address }

var sentinels = map[Kind]error{
	KindPolicy:      ErrPolicyViolation,
	KindDescriptor:  ErrDescriptor,
	KindRemoteWrite: ErrRemoteWrite,
	KindCredential:  ErrCredential,
	KindLinkWrite:   ErrLinkWrite,
}

// Error is a failure reconciling one repository.
type Error struct {
	Kind Kind
	// Repo is the identifier or PHID of the repository.
	Repo string
	// Action and Status are set for KindRemoteWrite.
	Action host.Action
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := sentinels[e.Kind].Error()
	switch e.Kind {
	case KindRemoteWrite:
		if e.Status != 0 {
			msg = fmt.Sprintf("%s (%s, status %d)", msg, e.Action, e.Status)
		} else {
			msg = fmt.Sprintf("%s (%s)", msg, e.Action)
		}
	case KindLinkWrite:
		msg += "; the host repository may exist without a push link, re-run with --bypass-existing-check"
	}
	if e.Repo != "" {
		msg = e.Repo + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && target == s
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// Inconsistent reports whether err may have left a host repository without
// its forge-side push link.
func Inconsistent(err error) bool {
	return errors.Is(err, ErrLinkWrite)
}

func remoteWriteError(repo string, action host.Action, err error) *Error {
	e := &Error{Kind: KindRemoteWrite, Repo: repo, Action: action, Err: err}
	var we *host.WriteError
	if errors.As(err, &we) {
		e.Action = we.Action
		e.Status = we.Status
	}
	return e
}
