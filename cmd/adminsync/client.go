package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/playok/adminsync/internal/client"
	"github.com/playok/adminsync/internal/config"
	"github.com/playok/adminsync/internal/logging"
	"github.com/playok/adminsync/internal/model"
)

type clientFlags struct {
	url      string
	apiName  string
	priority string
	timeout  time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Site URL (default: derived from --listen and --base-path)")
	cmd.Flags().StringVar(&f.apiName, "api-name", "", "Ajax action name (default: api_name from config)")
	cmd.Flags().StringVar(&f.priority, "priority", client.Foreground.String(), "Load type sent to the server (foreground, background, invisible)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "Request timeout")
}

func newLoadCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "load [KEY=DEFAULT...]",
		Short: "Load settings, seeding any that are not stored yet with the given defaults",
		Long: `Load asks the server for the given keys. Keys that are not stored yet are
created with the given default. Without arguments every configured field is
requested with an empty default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, &f, args, model.CommandLoad)
		},
	}
	f.register(cmd)
	return cmd
}

func newSaveCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "save KEY=VALUE...",
		Short: "Save settings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, &f, args, model.CommandSave)
		},
	}
	f.register(cmd)
	return cmd
}

func runClient(cmd *cobra.Command, f *clientFlags, args []string, command string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	bag, err := parseAssignments(args)
	if err != nil {
		return err
	}
	if command == model.CommandLoad && len(bag) == 0 {
		// The server rejects an empty form; ask for every whitelisted field.
		for _, k := range cfg.Fields {
			bag[k] = ""
		}
	}
	priority, err := parsePriority(f.priority)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	siteURL := f.url
	if siteURL == "" {
		siteURL = localSiteURL(cfg)
	}
	apiName := f.apiName
	if apiName == "" {
		apiName = cfg.APIName
	}

	c := client.NewForSite(siteURL, apiName, bag, client.WithLogger(logger.Named("client")))
	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	opts := client.RequestOptions{Priority: priority}
	var view client.View
	if command == model.CommandLoad {
		view, err = c.LoadData(ctx, opts)
	} else {
		view, err = c.SaveData(ctx, opts)
	}
	printView(cmd.OutOrStdout(), view)
	if err != nil {
		return err
	}
	if len(view.Errors) > 0 {
		return fmt.Errorf("%s finished with %d error(s)", command, len(view.Errors))
	}
	return nil
}

// parseAssignments turns KEY=VALUE arguments into a bag. The value may be
// empty or contain '='; the key may not be empty.
func parseAssignments(args []string) (model.Bag, error) {
	bag := model.Bag{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad setting %q, expected KEY=VALUE", a)
		}
		bag[k] = v
	}
	return bag, nil
}

func parsePriority(s string) (client.LoadPriority, error) {
	for _, p := range []client.LoadPriority{client.Foreground, client.Background, client.Invisible} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// localSiteURL points at the server this config describes. An unspecified
// listen host is reached through loopback.
func localSiteURL(cfg *config.Config) string {
	addr := cfg.Listen
	if host, port, err := net.SplitHostPort(addr); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	u := "http://" + addr
	if cfg.BasePath != "/" {
		u += cfg.BasePath
	}
	return u
}

func printView(w io.Writer, v client.View) {
	keys := make([]string, 0, len(v.Data))
	for k := range v.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", k, v.Data[k])
	}
	for _, m := range v.Notifications {
		fmt.Fprintf(w, "notice: %s\n", m.Content)
	}
	for _, m := range v.Errors {
		fmt.Fprintf(w, "error: %s\n", m.Content)
	}
}
