// Package keys resolves the SSH private key for an instance.
//
// Resolution walks three sources in order and stops at the first hit:
//
//  1. the secrets store, <secrets>/ssh_key_<id>;
//  2. the IdentityFile of the exact "Host tnr-<id>" entry in ~/.ssh/config,
//     which is copied into the secrets store;
//  3. a [Bootstrapper], normally `tnr connect <id>`, after which step 2 is
//     retried exactly once.
//
// The bootstrap strategy is fixed when the [Resolver] is built. A failed
// resolution is a *ResolutionError naming the instance and the last step.
package keys
