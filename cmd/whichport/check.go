package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamath/whichport"
	"github.com/kamath/whichport/internal/probe"
)

// errInactive makes the command exit 1 without a usage dump.
var errInactive = errors.New("port is not responding")

// checkCmd runs a single check without starting the dashboard.
var checkCmd = &cobra.Command{
	Use:   "check [host:]port[/path]",
	Short: "Check one port and exit",
	Long: `Check whether something is serving on a port, print the result, and exit.

The host defaults to localhost. A path after the port is requested instead
of the root, e.g. 8080/healthz or api.local:8080/healthz.

Exit codes:
  0 - Port is active
  1 - Port is inactive or the argument is invalid

Example:
  whichport check 3000
  whichport check 127.0.0.1:8080/healthz --timeout 2s`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Duration("timeout", probe.DefaultTimeout, "time allowed for the check")
}

func runCheck(cmd *cobra.Command, args []string) error {
	target, err := parseTarget(args[0])
	if err != nil {
		return err
	}

	timeout := settings.GetDuration("timeout")
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	prober := probe.NewProber(nil)
	defer prober.Close()

	result := prober.Probe(cmd.Context(), target, timeout)
	printResult(cmd.OutOrStdout(), target, result)

	if result.State() != probe.StateActive {
		return errInactive
	}
	return nil
}

// parseTarget accepts [http://][host:]port[/path].
func parseTarget(s string) (probe.Target, error) {
	rest := strings.TrimPrefix(strings.TrimSpace(s), "http://")

	var path string
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest, path = rest[:i], rest[i:]
	}

	host := whichport.DefaultHost
	portStr := rest
	switch {
	case strings.HasPrefix(rest, "["):
		h, p, err := net.SplitHostPort(rest)
		if err != nil {
			return probe.Target{}, fmt.Errorf("invalid address %q: %w", s, err)
		}
		host, portStr = h, p
	case strings.ContainsRune(rest, ':'):
		i := strings.LastIndexByte(rest, ':')
		host, portStr = rest[:i], rest[i+1:]
		if host == "" {
			host = whichport.DefaultHost
		}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return probe.Target{}, fmt.Errorf("invalid port %q in %q", portStr, s)
	}
	if port < 1 || port > 65535 {
		return probe.Target{}, fmt.Errorf("%w, got %d", whichport.ErrInvalidPort, port)
	}

	return probe.Target{Host: host, Port: port, Path: path}, nil
}

func printResult(w io.Writer, target probe.Target, result probe.Result) {
	ms := result.Latency().Milliseconds()

	switch r := result.(type) {
	case probe.Active:
		fmt.Fprintf(w, "active    %s  HTTP %d  %dms", target.URL(), r.HTTPStatus, ms)
		if r.Title != "" {
			fmt.Fprintf(w, "  %q", r.Title)
		}
		fmt.Fprintln(w)
	case probe.Opaque:
		fmt.Fprintf(w, "active    %s  opaque response  %dms\n", target.URL(), ms)
	case probe.Inactive:
		fmt.Fprintf(w, "inactive  %s  %s\n", target.URL(), r.Err)
	}
}
