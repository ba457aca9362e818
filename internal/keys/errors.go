package keys

import (
	"errors"
	"fmt"

	"github.com/imamik/tnrctl/internal/instance"
)

// Step names a resolution source.
type Step string

// Resolution steps, in order.
const (
	StepSecretsStore Step = "secrets-store"
	StepSSHConfig    Step = "ssh-config"
	StepCLIBootstrap Step = "cli-bootstrap"
)

var (
	// ErrKeyResolution matches any *ResolutionError.
	ErrKeyResolution = errors.New("key resolution failed")

	// ErrKeyNotStored means the secrets store has no key for the instance.
	ErrKeyNotStored = errors.New("no key in secrets store")

	// ErrNoHostEntry means ~/.ssh/config has no exact Host entry for the alias.
	ErrNoHostEntry = errors.New("no matching Host entry in SSH config")

	// ErrNoIdentityFile means the Host entry exists but names no IdentityFile.
	ErrNoIdentityFile = errors.New("host entry has no IdentityFile")

	// ErrAutoSetupDisabled is returned by NoBootstrap.
	ErrAutoSetupDisabled = errors.New("automatic key setup is disabled")
)

// ResolutionError reports that no usable key could be found or derived.
type ResolutionError struct {
	Instance instance.ID
	Step     Step
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve SSH key for instance %s (%s): %v", e.Instance, e.Step, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrKeyResolution) true for any ResolutionError.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrKeyResolution
}
