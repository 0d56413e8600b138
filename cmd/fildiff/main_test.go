package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunVersionFlag(t *testing.T) {
	if got := run([]string{"-version"}); got != 0 {
		t.Fatalf("run(-version) = %d, want 0", got)
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	if got := run([]string{"-no-such-flag"}); got != 1 {
		t.Fatalf("run(-no-such-flag) = %d, want 1", got)
	}
}

func TestRunRejectsBadEndpoint(t *testing.T) {
	if got := run([]string{"-candidate", "not a multiaddr"}); got != 1 {
		t.Fatalf("run() with bad candidate = %d, want 1", got)
	}
}

func TestRunRejectsMixedTransports(t *testing.T) {
	args := []string{
		"-candidate", "/ip4/127.0.0.1/tcp/2345/http",
		"-reference", "/ip4/127.0.0.1/tcp/1234/ws",
	}
	if got := run(args); got != 1 {
		t.Fatalf("run() with mixed transports = %d, want 1", got)
	}
}

func TestRunRejectsBadRunMode(t *testing.T) {
	if got := run([]string{"-run-ignored", "sometimes"}); got != 1 {
		t.Fatalf("run() with bad run mode = %d, want 1", got)
	}
}

func TestBuildFilterPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.txt")
	if err := os.WriteFile(path, []byte("Chain\n!Eth\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := buildFilter("State", path)
	if err != nil {
		t.Fatalf("buildFilter() error = %v", err)
	}
	if !list.Authorize("Filecoin.ChainHead") {
		t.Error("file allow rule not applied")
	}
	if list.Authorize("Filecoin.StateCall") {
		t.Error("inline rule applied despite filter file")
	}
}

func TestBuildFilterInline(t *testing.T) {
	list, err := buildFilter("!Eth", "")
	if err != nil {
		t.Fatalf("buildFilter() error = %v", err)
	}
	if list.Authorize("Filecoin.EthChainId") {
		t.Error("inline reject rule not applied")
	}
}
