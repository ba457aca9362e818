// Package config defines the configuration surface of tnrctl.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (default ~/.config/tnrctl/config.yaml), then environment variables. The
// resulting [Config] is validated once and passed down to the lifecycle
// client, key resolver, connection pool and session driver.
//
// Missing credentials and a missing external CLI are reported as
// [ConfigurationError], matched with errors.Is(err, ErrConfiguration).
package config
