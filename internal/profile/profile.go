// Package profile persists named connection bundles for the CLI. The
// backing store is one human-editable YAML file with a top-level
// "profiles" mapping; it is loaded fully on construction and rewritten
// whole on every mutation. Protected profiles are immutable through this
// API and only editable out of band.
package profile

import (
	"errors"
	"fmt"
)

// Profile is one saved connection bundle.
type Profile struct {
	Name      string
	URL       string
	DB        string
	Username  string
	Password  string
	Timeout   int
	VerifySSL bool
	Default   bool
	ReadOnly  bool
	Protected bool

	// Context is the ambient Odoo context applied to every call made
	// under this profile (e.g. lang, allowed_company_ids).
	Context map[string]any
}

// Redacted returns a copy with the password masked, for display.
func (p Profile) Redacted() Profile {
	p.Password = "***"
	return p
}

var (
	// ErrNotFound reports a profile name absent from the store.
	ErrNotFound = errors.New("profile not found")
	// ErrExists reports an add colliding with an existing name.
	ErrExists = errors.New("profile already exists")
	// ErrProtected reports a mutation attempt on a protected profile.
	ErrProtected = errors.New("profile is protected")
)

// ConfirmationError signals that a guarded mutation needs explicit
// operator consent. It is a re-prompt signal, not a failure: the caller
// repeats the call with confirmed=true after obtaining consent.
type ConfirmationError struct {
	Name    string
	Warning string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("removing readonly from %q allows write operations", e.Name)
}

// Updates is a partial profile edit. Nil fields are left unchanged.
type Updates struct {
	URL       *string
	DB        *string
	Username  *string
	Password  *string
	Timeout   *int
	VerifySSL *bool
	ReadOnly  *bool
	Default   *bool
}
