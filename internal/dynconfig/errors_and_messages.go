package dynconfig

import (
	"errors"
	"fmt"

	"github.com/eventrelay/relay/internal/basictypes"
)

// ErrProjectRejected is the common cause of all errors returned by ProjectState.CheckRequest.
var ErrProjectRejected = errors.New("project rejected the request")

var errUnsupportedCondition = errors.New("unsupported condition")

func errProjectInvalid() error {
	return fmt.Errorf("%w: project state is invalid", ErrProjectRejected)
}

func errProjectDisabled() error {
	return fmt.Errorf("%w: project is disabled", ErrProjectRejected)
}

func errUnknownKey(key basictypes.ProjectKey) error {
	return fmt.Errorf("%w: unknown public key %s", ErrProjectRejected, key)
}

func errProjectIDMismatch(id basictypes.ProjectID) error {
	return fmt.Errorf("%w: project ID %s does not match the key", ErrProjectRejected, id)
}
