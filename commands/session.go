package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schaltwerk/schaltwerk/config"
	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/log"
	"github.com/schaltwerk/schaltwerk/session"
	"github.com/schaltwerk/schaltwerk/session/git"
	"github.com/schaltwerk/schaltwerk/terminal"
	"github.com/spf13/cobra"
)

var repoFlag string

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	nameStyle    = lipgloss.NewStyle().Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// resolveRepoRoot returns the repository named by --repo, or the one
// containing the current directory.
func resolveRepoRoot() (string, error) {
	start := repoFlag
	if start == "" {
		var err error
		if start, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	root, err := git.FindRepoRoot(start)
	if err != nil {
		return "", fmt.Errorf("schaltwerk must be run from within a git repository: %w", err)
	}
	return root, nil
}

// newManager wires a session manager for repoRoot with a terminal host
// owned by this process, and restores the sessions found on disk.
func newManager(ctx context.Context, cfg *config.Config, repoRoot string, sink events.Sink) (*session.Manager, *terminal.Host, error) {
	host := terminal.NewHostFromConfig(cfg, sink)
	mgr := session.NewManager(session.ManagerOptions{
		RepoRoot:  repoRoot,
		Backend:   terminal.NewLocalBackend(host),
		Worktrees: git.NewWorktrees(repoRoot, cfg.BranchPrefix),
		Sink:      sink,
		Size:      terminal.Size{Cols: cfg.DefaultCols, Rows: cfg.DefaultRows},
	})
	if _, err := mgr.Restore(ctx); err != nil {
		_ = host.Shutdown(ctx)
		return nil, nil, err
	}
	return mgr, host, nil
}

// WorktreeCmd maps between session names and worktree paths.
var WorktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Map between session names and worktree paths",
}

var worktreePathCmd = &cobra.Command{
	Use:   "path <name>",
	Short: "Print the worktree path of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.ValidateSessionName(args[0]); err != nil {
			return err
		}
		root, err := resolveRepoRoot()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.WorktreePath(root, args[0]))
		return nil
	},
}

var worktreeNameCmd = &cobra.Command{
	Use:   "name <path>",
	Short: "Print the session name a path belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		name, err := session.SessionNameFromPath(path)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

// ListCmd prints the sessions whose worktrees exist on disk.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions of the current repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Initialize(false)
		defer log.Close()

		root, err := resolveRepoRoot()
		if err != nil {
			return err
		}
		mgr, host, err := newManager(cmd.Context(), config.LoadConfig(), root, events.Nop)
		if err != nil {
			return err
		}
		defer host.Shutdown(context.Background())

		fmt.Fprint(cmd.OutOrStdout(), renderSessions(mgr.List()))
		return nil
	},
}

func renderSessions(sessions []session.Session) string {
	if len(sessions) == 0 {
		return stoppedStyle.Render("no sessions") + "\n"
	}
	width := len("NAME")
	for _, s := range sessions {
		width = max(width, len(s.Name))
	}
	var sb strings.Builder
	pad := func(s string) string { return s + strings.Repeat(" ", width-len(s)+2) }
	sb.WriteString(headerStyle.Render(pad("NAME")+"STATE    "+"PATH") + "\n")
	for _, s := range sessions {
		state := stoppedStyle
		if s.State == session.Running {
			state = runningStyle
		}
		sb.WriteString(nameStyle.Render(pad(s.Name)))
		sb.WriteString(state.Render(fmt.Sprintf("%-9s", s.State)))
		sb.WriteString(s.WorktreePath)
		sb.WriteString("\n")
	}
	return sb.String()
}

// DeleteCmd tears a session down: terminals, merge lock, then worktree.
var DeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a session and its worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Initialize(false)
		defer log.Close()

		name := args[0]
		if err := session.ValidateSessionName(name); err != nil {
			return err
		}
		root, err := resolveRepoRoot()
		if err != nil {
			return err
		}
		mgr, host, err := newManager(cmd.Context(), config.LoadConfig(), root, events.Nop)
		if err != nil {
			return err
		}
		defer host.Shutdown(context.Background())

		if err := mgr.Delete(cmd.Context(), name); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render("✗ "+name))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ deleted "+name))
		return nil
	},
}

// ValidateCmd checks a session name and suggests a valid one when it fails.
var ValidateCmd = &cobra.Command{
	Use:   "validate <name>",
	Short: "Check whether a session name is valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := session.ValidateSessionName(args[0])
		if err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("valid"))
			return nil
		}
		if suggestion := session.SanitizeSessionName(args[0]); suggestion != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "try %q\n", suggestion)
		}
		return err
	},
}

// NameCmd prints a generated session name not used by any worktree.
var NameCmd = &cobra.Command{
	Use:   "new-name",
	Short: "Generate an unused session name",
	RunE: func(cmd *cobra.Command, args []string) error {
		taken := map[string]bool{}
		if root, err := resolveRepoRoot(); err == nil {
			names, err := session.DiscoverSessions(root)
			if err != nil {
				return err
			}
			for _, n := range names {
				taken[n] = true
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.GenerateSessionName(nil, func(s string) bool { return taken[s] }))
		return nil
	},
}

func init() {
	WorktreeCmd.AddCommand(worktreePathCmd, worktreeNameCmd)
	for _, c := range []*cobra.Command{WorktreeCmd, ListCmd, DeleteCmd, NameCmd} {
		c.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository path (default: current directory)")
	}
}
