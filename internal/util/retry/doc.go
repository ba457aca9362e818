// Package retry provides the two waiting primitives used across tnrctl.
//
// [WithExponentialBackoff] retries an operation that the caller explicitly
// chose to retry, such as waiting for SSH to come up on a freshly created
// instance. Components never use it to hide network failures.
//
// [Poll] runs a condition at a fixed interval until it reports done or a
// deadline passes, and returns a tagged [Result] instead of blocking
// indefinitely. Callers turn a [TimedOut] result into a [TimeoutError].
package retry
