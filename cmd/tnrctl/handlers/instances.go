package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/orchestration"
	"github.com/imamik/tnrctl/internal/platform/thunder"
)

// sshReadyDelay is the first backoff delay of create --wait-ssh.
var sshReadyDelay = 5 * time.Second

// InstanceView is the JSON shape of one listed instance.
type InstanceView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Status     string        `json:"status"`
	IP         string        `json:"ip,omitempty"`
	CPUCores   int           `json:"cpuCores,omitempty"`
	GPUType    string        `json:"gpuType,omitempty"`
	NumGPUs    int           `json:"numGpus,omitempty"`
	DiskSizeGB int           `json:"diskSizeGb,omitempty"`
	Sessions   []SessionView `json:"sessions,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func viewOf(rec instance.Record) InstanceView {
	return InstanceView{
		ID:         rec.ID.String(),
		Name:       rec.Name,
		Status:     string(rec.Status),
		IP:         rec.IP,
		CPUCores:   int(rec.CPUCores),
		GPUType:    rec.GPUType,
		NumGPUs:    int(rec.NumGPUs),
		DiskSizeGB: int(rec.DiskSizeGB),
	}
}

func shape(rec instance.Record) string {
	gpu := "no gpu"
	if rec.HasGPU() {
		gpu = fmt.Sprintf("%dx %s", rec.NumGPUs, rec.GPUType)
	}
	return fmt.Sprintf("%d vCPU, %s, %d GB", rec.CPUCores, gpu, rec.DiskSizeGB)
}

// ListArgs carries the list flags.
type ListArgs struct {
	Status   string
	Refresh  bool
	Sessions bool
	JSON     bool
}

// List handles instances list.
func List(ctx context.Context, opts Options, args ListArgs) error {
	return withManager(opts, func(m *orchestration.Manager) error {
		rows, err := m.Overview(ctx, args.Refresh, args.Sessions)
		if err != nil {
			return err
		}
		if args.Status != "" {
			want := instance.ParseStatus(args.Status)
			filtered := rows[:0]
			for _, row := range rows {
				if row.Record.Status == want {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
		}

		if args.JSON {
			views := make([]InstanceView, 0, len(rows))
			for _, row := range rows {
				v := viewOf(row.Record)
				for _, s := range row.Sessions {
					v.Sessions = append(v.Sessions, sessionViewOf(s))
				}
				if row.Err != nil {
					v.Error = row.Err.Error()
				}
				views = append(views, v)
			}
			return printJSON(views)
		}

		if len(rows) == 0 {
			fmt.Println("No instances.")
			return nil
		}
		fmt.Printf("%-6s %-20s %-9s %-15s %s\n", "ID", "NAME", "STATUS", "IP", "SHAPE")
		for _, row := range rows {
			rec := row.Record
			fmt.Printf("%-6s %-20s %s %-15s %s\n",
				rec.ID, orDash(rec.Name), statusCell(rec.Status, 9), orDash(rec.IP), shape(rec))
			if !args.Sessions {
				continue
			}
			if row.Err != nil {
				fmt.Printf("       %s\n", style(failureStyle, "sessions: "+row.Err.Error()))
				continue
			}
			for _, s := range row.Sessions {
				fmt.Printf("       %s %s\n", style(dimStyle, "└"), s.Name)
			}
		}
		return nil
	})
}

// Status handles instances status. Unknown ids fail the command after
// every known one was printed.
func Status(ctx context.Context, opts Options, rawIDs []string, jsonOutput bool) error {
	ids := make([]instance.ID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := parseID(raw)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		var (
			views []InstanceView
			errs  []error
		)
		for _, id := range ids {
			rec, err := m.Instances().GetInstance(ctx, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if jsonOutput {
				views = append(views, viewOf(rec))
				continue
			}
			fmt.Printf("%s %s\n", style(titleStyle, "Instance"), rec.ID)
			fmt.Printf("  Name:     %s\n", orDash(rec.Name))
			fmt.Printf("  Status:   %s\n", statusCell(rec.Status, 0))
			fmt.Printf("  IP:       %s\n", orDash(rec.IP))
			fmt.Printf("  Shape:    %s\n", shape(rec))
			if rec.Template != "" {
				fmt.Printf("  Template: %s\n", rec.Template)
			}
		}
		if jsonOutput && len(views) > 0 {
			if err := printJSON(views); err != nil {
				return err
			}
		}
		return errors.Join(errs...)
	})
}

// CreateArgs carries the create flags.
type CreateArgs struct {
	thunder.CreateRequest

	Wait        bool
	WaitSSH     bool
	Timeout     time.Duration
	SSHAttempts int
}

// Create handles the create command.
func Create(ctx context.Context, opts Options, args CreateArgs) error {
	return withManager(opts, func(m *orchestration.Manager) error {
		wait := args.Wait || args.WaitSSH
		created, err := m.CreateInstance(ctx, orchestration.CreateOptions{
			CreateRequest:  args.CreateRequest,
			WaitForRunning: wait,
			WaitTimeout:    args.Timeout,
		})
		if created != nil {
			fmt.Printf("%s instance %s\n", style(successStyle, "Created"), created.ID)
			if created.KeyPath != "" {
				fmt.Printf("  SSH key: %s\n", created.KeyPath)
			}
		}
		if err != nil {
			return err
		}
		if wait {
			fmt.Printf("  Status:  %s\n", statusCell(created.Record.Status, 0))
		}
		if !args.WaitSSH {
			return nil
		}
		if err := m.WaitForSSH(ctx, created.ID, args.SSHAttempts, sshReadyDelay); err != nil {
			return err
		}
		fmt.Println("  SSH:     ready")
		return nil
	})
}

// Start handles instances start.
func Start(ctx context.Context, opts Options, rawID string, wait bool, timeout time.Duration) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		if !wait {
			if err := m.Instances().Start(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Starting instance %s\n", id)
			return nil
		}
		rec, err := m.EnsureRunning(ctx, id, timeout)
		if err != nil {
			return err
		}
		fmt.Printf("Instance %s is %s\n", id, statusCell(rec.Status, 0))
		return nil
	})
}

// Stop handles instances stop.
func Stop(ctx context.Context, opts Options, rawID string, wait bool, timeout time.Duration) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		if err := m.Instances().Stop(ctx, id); err != nil {
			return err
		}
		// Connections to a stopping instance are useless.
		m.Pool().Invalidate(id)
		if !wait {
			fmt.Printf("Stopping instance %s\n", id)
			return nil
		}
		rec, err := m.WaitForStatus(ctx, id, instance.StatusStopped, timeout)
		if err != nil {
			return err
		}
		fmt.Printf("Instance %s is %s\n", id, statusCell(rec.Status, 0))
		return nil
	})
}

// ModifyArgs carries the modify flags. Zero values are not sent.
type ModifyArgs = thunder.ModifyRequest

// Modify handles the modify command.
func Modify(ctx context.Context, opts Options, rawID string, args ModifyArgs) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if args == (ModifyArgs{}) {
		return errors.New("nothing to modify: pass at least one of --cpu-cores, --gpu-type, --num-gpus, --disk-size")
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		if err := m.Instances().Modify(ctx, id, args); err != nil {
			return err
		}
		fmt.Printf("Modified instance %s\n", id)
		return nil
	})
}

// Clone handles the clone command.
func Clone(ctx context.Context, opts Options, rawID, name string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		resp, err := m.Instances().Clone(ctx, id, thunder.CloneRequest{Name: name})
		if err != nil {
			return err
		}
		fmt.Printf("%s instance %s as %s\n", style(successStyle, "Cloned"), id, resp.Identifier)
		if resp.Key != "" {
			material, err := m.Store().Save(ctx, resp.Identifier, []byte(resp.Key))
			if err != nil {
				return fmt.Errorf("clone %s created but its key could not be stored: %w", resp.Identifier, err)
			}
			fmt.Printf("  SSH key: %s\n", material.Path)
		}
		return nil
	})
}

// Delete handles the delete command.
func Delete(ctx context.Context, opts Options, rawID string, yes bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if !yes {
		if !isTerminal() {
			return fmt.Errorf("refusing to delete instance %s without --yes on a non-interactive terminal", id)
		}
		ok, err := confirm(ctx,
			fmt.Sprintf("Delete instance %s?", id),
			"The instance and its disk are destroyed. This cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}
	return withManager(opts, func(m *orchestration.Manager) error {
		m.Pool().Invalidate(id)
		if err := m.Instances().Delete(ctx, id, true); err != nil {
			return err
		}
		fmt.Printf("%s instance %s\n", style(failureStyle, "Deleted"), id)
		return nil
	})
}
