package iswaddon

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrScriptingNotEnabled is returned when a script is added before
	// EnableScripting.
	ErrScriptingNotEnabled = errors.New("scripting not enabled")
	// ErrScriptingAlreadyEnabled is returned by a second EnableScripting call.
	ErrScriptingAlreadyEnabled = errors.New("scripting already enabled")
	// ErrDuplicateArtifact is returned when an add targets a path that an
	// earlier add already owns.
	ErrDuplicateArtifact = errors.New("duplicate artifact")
	// ErrInvalidArtifact wraps schema failures of an assembled record.
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// InputError rejects a definition before any assembly work is done.
type InputError struct {
	Kind       string
	Identifier string
	Field      string
	Reason     string
}

func (e *InputError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if e.Identifier != "" {
		fmt.Fprintf(&b, " %q", e.Identifier)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// MisuseError reports a violated call-order precondition. The builder state
// is unchanged when one is returned.
type MisuseError struct {
	Op  string
	Err error
}

func (e *MisuseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *MisuseError) Unwrap() error {
	return e.Err
}

// ArtifactError locates one failed element of a batch add.
type ArtifactError struct {
	Kind       string
	Index      int
	Identifier string
	Err        error
}

func (e *ArtifactError) Error() string {
	id := e.Identifier
	if id == "" {
		id = "<missing identifier>"
	}
	return fmt.Sprintf("%s[%d] %s: %v", e.Kind, e.Index, id, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// BatchError collects the failures of a batch add. Elements not listed were
// added.
type BatchError struct {
	Failures []*ArtifactError
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d artifact(s) rejected: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// BuildError is a fatal serialization failure. No archives are returned
// alongside it.
type BuildError struct {
	Pack string
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("build %s pack: %s: %v", e.Pack, e.Path, e.Err)
	}
	return fmt.Sprintf("build %s pack: %v", e.Pack, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
