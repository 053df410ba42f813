package main

import (
	"strings"
	"testing"

	"github.com/kamath/whichport/config"
)

func TestRootHelp_ExampleConfigParses(t *testing.T) {
	t.Setenv("HOME", "/home/dev")

	_, example, ok := strings.Cut(rootCmd.Long, "Example config:\n")
	if !ok {
		t.Fatal("root help has no example config")
	}

	var lines []string
	for _, line := range strings.Split(example, "\n") {
		lines = append(lines, strings.TrimPrefix(line, "  "))
	}

	cfg, err := config.Parse([]byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	if cfg.DataFile != "/home/dev/.whichport/state.json" {
		t.Errorf("DataFile = %q, want /home/dev/.whichport/state.json", cfg.DataFile)
	}
	if len(cfg.Entries) != 2 {
		t.Errorf("len(Entries) = %d, want 2", len(cfg.Entries))
	}
}
