package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/playok/adminsync/internal/config"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start daemon (background)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return startDaemon(cmd.OutOrStdout(), cfg, forwardFlags(cmd.Flags()))
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return stopDaemon(cmd.OutOrStdout(), cfg)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return daemonStatus(cmd.OutOrStdout(), cfg)
		},
	}
}

// forwardFlags rebuilds the command line of the daemon child: "run" plus
// every flag the user set explicitly. Unset flags stay unset so the child
// resolves (and hot reloads) them from the config file and environment.
func forwardFlags(fs *pflag.FlagSet) []string {
	args := []string{"run", "--daemon"}
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "daemon" {
			return
		}
		args = append(args, "--"+f.Name+"="+flagValue(f))
	})
	return args
}

func flagValue(f *pflag.Flag) string {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return strings.Join(sv.GetSlice(), ",")
	}
	return f.Value.String()
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "  Listen : http://%s\n", cfg.Listen)
	fmt.Fprintf(w, "  Base   : %s\n", cfg.BasePath)
	fmt.Fprintf(w, "  Store  : %s\n", cfg.Store.Driver)
	fmt.Fprintf(w, "  Config : %s\n", cfg.ConfigPath)
	fmt.Fprintf(w, "  PID    : %s\n", cfg.PidFile)
	fmt.Fprintf(w, "  Log    : %s\n", cfg.LogFile)
}

func writePidFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s", path)
	}
	return pid, nil
}
