package pool

import (
	"errors"
	"fmt"

	"github.com/imamik/tnrctl/internal/instance"
)

// ErrConnection matches any *ConnectionError.
var ErrConnection = errors.New("connection failed")

// ConnectionError reports a failure to establish or validate a connection.
type ConnectionError struct {
	Instance instance.ID
	Op       string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to instance %s: %s: %v", e.Instance, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConnection) true for any ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
