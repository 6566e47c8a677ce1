package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := startWithRetry(context.Background(), "test", func(context.Context) error {
		calls++
		return nil
	}, 3)
	if err != nil || calls != 1 {
		t.Errorf("startWithRetry() = %v after %d calls, want nil after 1", err, calls)
	}
}

func TestStartWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := startWithRetry(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("bind: address already in use")
	}, 3)
	if err != nil {
		t.Errorf("startWithRetry() error = %v, want nil after cancel", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("startWithRetry waited after cancellation")
	}
}

func TestExecCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cmd := execCmd(ptr(filepath.Join(dir, "config")))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"num", "42"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("exec error: %v", err)
	}
	if !strings.Contains(out.String(), "43 254 254 254") {
		t.Errorf("output = %q, want encoded 42", out.String())
	}
}

func TestVersionShort(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version error: %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Error("version printed nothing")
	}
}

func ptr(s string) *string { return &s }
