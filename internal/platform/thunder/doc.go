// Package thunder is the Thunder Compute instance lifecycle client.
//
// It wraps the REST API (list, create, start, stop, modify, clone, delete)
// behind a [Client] whose instance list is cached for a short TTL. Every
// mutating call invalidates the cache, and concurrent refreshes collapse
// into one request. [Client.WaitForStatus] polls with a forced refresh
// until the instance reaches the target state or the timeout expires.
package thunder
