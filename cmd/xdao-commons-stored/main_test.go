package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/commons/config"
)

func TestListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--list-backends"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	for _, name := range []string{"localfs", "memory", "redis"} {
		if !strings.Contains(out.String(), name+"\t") {
			t.Fatalf("missing backend %q in %q", name, out.String())
		}
	}
	if strings.Contains(out.String(), "grpc\t") {
		t.Fatalf("the gRPC client must not be offered as a daemon backend")
	}
}

func TestRejectsBadInvocations(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.WorkspaceDir = filepath.Join(dir, "ws")
	cfg.KeyDir = filepath.Join(dir, "keys")
	path := filepath.Join(dir, "config.yaml")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	cases := map[string][]string{
		"unknown flag":    {"--frobnicate"},
		"unknown backend": {"--config", path, "--backend", "tape"},
		"client backend":  {"--config", path, "--backend", "grpc"},
		"missing config":  {"--config", filepath.Join(dir, "missing.yaml")},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := run(context.Background(), args, &out, &errOut); code != 2 {
				t.Fatalf("exit %d want 2: %s", code, errOut.String())
			}
		})
	}
}
