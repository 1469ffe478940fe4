package main

import "testing"

func TestRunCLIUnknownCommand(t *testing.T) {
	if code := runCLI([]string{"bogus"}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunCLINoArgs(t *testing.T) {
	if code := runCLI(nil); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunCLIHelp(t *testing.T) {
	for _, arg := range []string{"help", "--help", "-h"} {
		if code := runCLI([]string{arg}); code != 0 {
			t.Errorf("runCLI(%q) = %d, want 0", arg, code)
		}
	}
}

func TestRunCLIVersion(t *testing.T) {
	if code := runCLI([]string{"version"}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if code := runCLI([]string{"version", "--json"}); code != 0 {
		t.Fatalf("exit code with --json = %d, want 0", code)
	}
}

func TestRunStartMissingConfig(t *testing.T) {
	if code := runStart([]string{"--config", "/nonexistent/config.yaml"}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestCurrentVersionInfo(t *testing.T) {
	info := currentVersionInfo()
	if info.Version == "" {
		t.Error("version should never be empty")
	}
}
