package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/tnrctl/internal/orchestration"
)

// Tunnel handles the tunnel command.
func Tunnel(ctx context.Context, opts Options, rawID string, args orchestration.TunnelOptions) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		t, err := m.StartTunnel(ctx, id, args)
		if err != nil {
			return err
		}
		verb := "Started"
		if t.Reused {
			verb = "Reusing"
		}
		fmt.Printf("%s tunnel for port %d in session %s\n", verb, t.Port, t.Session)
		if t.URL != "" {
			fmt.Printf("  URL: %s\n", style(titleStyle, t.URL))
		}
		return nil
	})
}
