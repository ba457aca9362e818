package keys

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/instance"
)

// Resolver finds or derives the private key for an instance.
type Resolver struct {
	store     *Store
	hosts     HostLookup
	bootstrap Bootstrapper
	prefix    string
	log       logr.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHostAliasPrefix overrides the "tnr" alias prefix.
func WithHostAliasPrefix(prefix string) ResolverOption {
	return func(r *Resolver) { r.prefix = prefix }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(log logr.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver builds a Resolver. A nil bootstrap means NoBootstrap.
func NewResolver(store *Store, hosts HostLookup, bootstrap Bootstrapper, opts ...ResolverOption) *Resolver {
	if bootstrap == nil {
		bootstrap = NoBootstrap{}
	}
	r := &Resolver{
		store:     store,
		hosts:     hosts,
		bootstrap: bootstrap,
		prefix:    instance.DefaultHostAliasPrefix,
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewBootstrapper picks the bootstrap strategy from the configuration.
func NewBootstrapper(cfg *config.Config, log logr.Logger) Bootstrapper {
	if !cfg.AutoSetupKeys {
		return NoBootstrap{}
	}
	return NewCLIBootstrapper(cfg.CLIPath, cfg.Timeouts.Bootstrap, log)
}

// Resolve returns the key for id. Failures are *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, id instance.ID) (*Material, error) {
	m, err := r.store.Load(ctx, id)
	if err == nil {
		r.log.V(1).Info("Using stored SSH key", "instance", id, "algorithm", m.Algorithm)
		return m, nil
	}
	if !errors.Is(err, ErrKeyNotStored) {
		return nil, &ResolutionError{Instance: id, Step: StepSecretsStore, Err: err}
	}

	m, lookupErr := r.fromSSHConfig(ctx, id)
	if lookupErr == nil {
		return m, nil
	}
	if ctx.Err() != nil {
		return nil, &ResolutionError{Instance: id, Step: StepSSHConfig, Err: ctx.Err()}
	}

	r.log.V(1).Info("No SSH key found locally", "instance", id, "reason", lookupErr.Error())
	bootErr := r.bootstrap.Bootstrap(ctx, id)
	if errors.Is(bootErr, ErrAutoSetupDisabled) {
		return nil, &ResolutionError{Instance: id, Step: StepSSHConfig, Err: errors.Join(lookupErr, bootErr)}
	}
	if errors.Is(bootErr, config.ErrConfiguration) {
		return nil, &ResolutionError{Instance: id, Step: StepCLIBootstrap, Err: bootErr}
	}
	if bootErr != nil {
		r.log.Error(bootErr, "Key bootstrap failed, retrying SSH config lookup", "instance", id)
	}

	m, lookupErr = r.fromSSHConfig(ctx, id)
	if lookupErr == nil {
		return m, nil
	}
	return nil, &ResolutionError{Instance: id, Step: StepCLIBootstrap, Err: errors.Join(bootErr, lookupErr)}
}

func (r *Resolver) fromSSHConfig(ctx context.Context, id instance.ID) (*Material, error) {
	alias := instance.HostAlias(r.prefix, id)
	path, err := r.hosts.IdentityFile(alias)
	if err != nil {
		return nil, err
	}
	m, err := r.store.Import(ctx, id, path)
	if err != nil {
		return nil, err
	}
	r.log.Info("Imported SSH key from SSH config", "instance", id, "alias", alias, "source", path, "path", m.Path)
	return m, nil
}
