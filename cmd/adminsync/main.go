package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/playok/adminsync/internal/config"
	"github.com/playok/adminsync/internal/settings"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adminsync",
		Short: "AdminSync: admin settings form backed by a key-value store",
		Long: `AdminSync serves a small admin settings page and the JSON endpoint it
posts to. Every form key is checked against a whitelist and its value is
loaded from or saved to the configured option store.`,
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newNginxCmd(),
		newLoadCmd(),
		newSaveCmd(),
		newNameCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adminsync %s\n", version)
		},
	}
}

func newNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name KEY...",
		Short: "Print the option name each form key is stored under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			for _, key := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, settings.SettingName(cfg.OptionPrefix, key))
			}
			return nil
		},
	}
}

func newNginxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nginx",
		Short: "Print sample nginx reverse proxy configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			printNginx(cmd, cfg)
			return nil
		},
	}
}

func printNginx(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()

	bp := cfg.BasePath
	if bp == "/" {
		bp = "/settings"
		fmt.Fprintln(out, `# base_path is "/", using "/settings" as example.`)
		fmt.Fprintln(out, "# Set base_path in config.yaml to match your desired location.")
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, `# --------------------------------------------------
# nginx reverse proxy configuration for AdminSync
# --------------------------------------------------
# Add this inside an http { server { ... } } block.

location %s/ {
    proxy_pass         http://%s/;
    proxy_http_version 1.1;

    # Saved-settings push
    proxy_set_header   Upgrade $http_upgrade;
    proxy_set_header   Connection "upgrade";

    proxy_set_header   Host              $host;
    proxy_set_header   X-Real-IP         $remote_addr;
    proxy_set_header   X-Forwarded-For   $proxy_add_x_forwarded_for;
    proxy_set_header   X-Forwarded-Proto $scheme;

    client_max_body_size 1m;
    proxy_read_timeout   86400s;
}
`, bp, cfg.Listen)

	fmt.Fprintln(out, "# config.yaml should have:")
	fmt.Fprintf(out, "#   base_path: %q\n", bp)
}
