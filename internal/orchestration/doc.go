// Package orchestration wires the lifecycle client, key resolver,
// connection pool and tmux driver into one process-scoped Manager.
//
// The Manager owns every cache in the process. It is built once at
// startup and torn down with Close, which releases all pooled SSH
// connections:
//
//	m, err := orchestration.New(cfg, orchestration.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	run, err := m.Sessions().RunScript(ctx, id, "train", "/home/ubuntu/train.sh", opts)
package orchestration
