// Package pool caches one SSH connection per instance.
//
// Acquire returns the cached connection when it was validated within the
// freshness window. An older connection is probed with a cheap remote
// command; if the probe fails the connection is closed, evicted and
// rebuilt from scratch: instance address, then key resolution, then dial.
//
// Acquisitions for the same instance are serialized by a per-instance
// mutex; different instances never share a lock. Key resolution errors
// pass through unchanged, every other failure is a *ConnectionError.
package pool
