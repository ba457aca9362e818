// Package testing provides fakes, mocks and builders shared by unit tests.
//
//   - FakeHost: an in-memory remote host that understands the tmux
//     commands the session driver issues
//   - FakeDialer: hands out FakeHost connections and counts dials
//   - MockAddressResolver, MockKeyResolver: testify mocks for the pool
//   - ConfigBuilder: fluent builder for config.Config
//
// Usage:
//
//	host := testing.NewFakeHost()
//	host.AddScript("/tmp/train.sh", testing.Script{Output: "epoch 1\n"})
//	dialer := testing.NewFakeDialer(host)
//
// Import it under an alias to avoid clashing with the standard library:
//
//	testutil "github.com/imamik/tnrctl/internal/testing"
package testing
