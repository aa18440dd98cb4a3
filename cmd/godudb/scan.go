package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	pathpkg "path"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sadopc/godudb/internal/config"
	"github.com/sadopc/godudb/internal/lifecycle"
	"github.com/sadopc/godudb/internal/model"
	"github.com/sadopc/godudb/internal/remote"
	"github.com/sadopc/godudb/internal/scanner"
	"github.com/sadopc/godudb/internal/store"
	"github.com/sadopc/godudb/internal/ui"
	"github.com/sadopc/godudb/internal/util"
)

const logInterval = 2 * time.Second

type scanTarget struct {
	Remote         bool
	LocalPath      string
	SSHDestination string
	RemotePath     string
}

// Root renders the target as a scan root the controller can open.
func (t scanTarget) Root() (string, error) {
	if !t.Remote {
		return t.LocalPath, nil
	}
	if remote.IsRemote(t.SSHDestination) {
		return t.SSHDestination, nil
	}
	if t.RemotePath == "." {
		return remote.Scheme + t.SSHDestination, nil
	}
	if !pathpkg.IsAbs(t.RemotePath) {
		return "", fmt.Errorf("remote path %q must be absolute", t.RemotePath)
	}
	return remote.Scheme + t.SSHDestination + pathpkg.Clean(t.RemotePath), nil
}

func addScanFlags(fs *pflag.FlagSet) {
	fs.Bool(config.KeyHidden, true, "include hidden files")
	fs.Bool("no-hidden", false, "skip hidden files")
	fs.StringSlice(config.KeyExclude, nil, "directory or file names to skip (comma-separated)")
	fs.Bool(config.KeyFollowSymlinks, false, "follow symbolic links; each real directory is scanned once")
	fs.IntP(config.KeyJobs, "j", 0, "max concurrent fan-out workers (0 = 3x CPU cores)")
	fs.Int(config.KeyFanOut, scanner.DefaultFanOutThreshold, "child count above which a directory is scanned in parallel")
	fs.Int(config.KeyBatchSize, scanner.DefaultBatchSize, "entries per database batch")
	fs.Int(config.KeyMailbox, 100, "batches buffered before the walker waits for the database")
	fs.Int(config.KeySSHPort, 22, "SSH port for remote scans")
	fs.Bool(config.KeySSHBatch, false, "disable SSH password prompts (key/agent auth only)")
	fs.Duration(config.KeySSHTimeout, 15*time.Second, "SSH connection timeout")
	fs.Bool("plain", false, "log progress lines instead of the interactive view")
}

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [path | user@host [remote-path] | sftp://user@host[:port]/path]",
		Short: "Scan a directory tree and store the results",
		Example: `  godudb scan .
  godudb scan --exclude node_modules,.git ~/src
  godudb scan alice@10.0.0.5 /var/log
  godudb scan sftp://alice@example.com:2222/srv`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveScanTarget(args)
			if err != nil {
				return err
			}
			root, err := target.Root()
			if err != nil {
				return err
			}
			plain, _ := cmd.Flags().GetBool("plain")

			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				ctrl := a.controller(st)
				h, err := ctrl.StartScan(ctx, root)
				if err != nil {
					return err
				}
				a.log.Info("scan started", "scan", h.ScanID, "root", h.Root)
				res, err := a.watch(ctx, h, plain)
				if err != nil {
					return err
				}
				a.report(res)
				return nil
			})
		},
	}
	addScanFlags(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive(config.KeyHidden, "no-hidden")
	return cmd
}

func newResumeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue a paused scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			plain, _ := cmd.Flags().GetBool("plain")

			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				ctrl := a.controller(st)
				h, err := ctrl.ResumeScan(ctx, id)
				if err != nil {
					return err
				}
				a.log.Info("scan resumed", "scan", h.ScanID, "root", h.Root, "skipped", h.Skipped)
				res, err := a.watch(ctx, h, plain)
				if err != nil {
					return err
				}
				a.report(res)
				return nil
			})
		},
	}
	addScanFlags(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive(config.KeyHidden, "no-hidden")
	return cmd
}

// watch follows h until the record is finalized. An interrupt pauses the
// scan instead of killing the process.
func (a *app) watch(ctx context.Context, h *lifecycle.Handle, plain bool) (lifecycle.Result, error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sigCtx.Done():
			a.log.Info("pausing scan, flushing pending entries", "scan", h.ScanID)
			h.Cancel()
		case <-h.Done():
		}
	}()

	if !plain && isTerminal(a.stdout) && isTerminal(os.Stdin) {
		m := ui.NewProgress(h, h.Root)
		if _, err := tea.NewProgram(m, tea.WithOutput(a.stdout)).Run(); err != nil {
			h.Cancel()
			a.log.Warn("progress view failed", "err", err)
		}
		if m.Detached() {
			fmt.Fprintln(a.stderr, "Waiting for pending entries to be written...")
		}
	} else {
		a.logProgress(h)
	}
	return h.Wait()
}

func (a *app) logProgress(h *lifecycle.Handle) {
	ticker := time.NewTicker(logInterval)
	defer ticker.Stop()

	var last scanner.Progress
	updates := h.Progress()
	for {
		select {
		case p, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			last = p
		case <-ticker.C:
			a.log.Info("scanning",
				"scan", h.ScanID,
				"entries", last.EntriesScanned,
				"size", util.FormatSize(last.BytesFound),
				"errors", last.Errors,
				"workers", last.ActiveWorkers,
				"rate", fmt.Sprintf("%.0f/s", last.ItemsPerSecond()))
		case <-h.Done():
			return
		}
	}
}

func (a *app) report(res lifecycle.Result) {
	stats := fmt.Sprintf("%s files, %s dirs, %s",
		util.FormatCount(res.Stats.TotalFiles), util.FormatCount(res.Stats.TotalDirs), util.FormatSize(res.Stats.TotalSize))
	switch res.Status {
	case model.StatusPaused:
		fmt.Fprintf(a.stdout, "Scan %d paused: %s recorded so far.\nResume with: godudb resume %d\n", res.ScanID, stats, res.ScanID)
	default:
		fmt.Fprintf(a.stdout, "Scan %d %s: %s\n", res.ScanID, res.Status, stats)
	}
	if res.Errors > 0 {
		fmt.Fprintf(a.stdout, "%s paths could not be read.\n", util.FormatCount(res.Errors))
	}
}

func resolveScanTarget(args []string) (scanTarget, error) {
	if len(args) == 0 {
		return scanTarget{LocalPath: "."}, nil
	}

	first := args[0]
	if remote.IsRemote(first) {
		if len(args) > 1 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for %s root", remote.Scheme)
		}
		return scanTarget{Remote: true, SSHDestination: first}, nil
	}

	if pathExists(first) {
		if len(args) > 1 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for local scan")
		}
		return scanTarget{LocalPath: first}, nil
	}

	if isRemote, err := validateRemoteTarget(first); isRemote {
		if err != nil {
			return scanTarget{}, err
		}
		if len(args) > 2 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for remote scan")
		}

		remotePath := "."
		if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
			remotePath = args[1]
		}

		return scanTarget{
			Remote:         true,
			SSHDestination: first,
			RemotePath:     remotePath,
		}, nil
	}

	if len(args) > 1 {
		return scanTarget{}, fmt.Errorf("too many positional arguments")
	}

	return scanTarget{LocalPath: first}, nil
}

func validateRemoteTarget(raw string) (bool, error) {
	if strings.ContainsAny(raw, `/\\`) {
		return false, nil
	}
	if strings.Count(raw, "@") != 1 {
		return false, nil
	}

	user, host, _ := strings.Cut(raw, "@")
	if user == "" || host == "" {
		return true, fmt.Errorf("invalid remote target %q: expected user@host", raw)
	}
	if strings.HasPrefix(user, "-") || strings.HasPrefix(host, "-") {
		return true, fmt.Errorf("invalid remote target %q", raw)
	}
	if strings.ContainsAny(user, " \t\n\r") || strings.ContainsAny(host, " \t\n\r") {
		return true, fmt.Errorf("invalid remote target %q: spaces are not allowed", raw)
	}
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		if end == -1 {
			return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		}
		if end == 1 {
			return true, fmt.Errorf("invalid remote target %q: empty host", raw)
		}
		if end != len(host)-1 {
			rest := host[end+1:]
			if strings.HasPrefix(rest, ":") && isAllDigits(rest[1:]) {
				return true, fmt.Errorf("remote target %q must not include :port; use --ssh-port", raw)
			}
			return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		}
	} else if strings.Contains(host, "]") {
		return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
	}
	if looksLikeHostPort(host) {
		return true, fmt.Errorf("remote target %q must not include :port; use --ssh-port", raw)
	}

	return true, nil
}

func looksLikeHostPort(host string) bool {
	if strings.Count(host, ":") != 1 {
		return false
	}
	_, port, ok := strings.Cut(host, ":")
	if !ok {
		return false
	}
	return isAllDigits(port)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
