package utils

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSetLogLevel(t *testing.T) {
	defer Log.SetLevel(logrus.InfoLevel)

	if err := SetLogLevel("WARN"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Log.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level = %v", Log.GetLevel())
	}
	if err := SetLogLevel("chatty"); err == nil {
		t.Fatalf("unknown level must be rejected")
	}
}

func TestFormatting(t *testing.T) {
	budget := 45000.0
	if got := FormatMoney(&budget); got != "$45,000" {
		t.Fatalf("FormatMoney = %q", got)
	}
	if got := FormatMoney(nil); got != "-" {
		t.Fatalf("FormatMoney(nil) = %q", got)
	}
	score := 88.25
	if got := FormatScore(&score); got != "88.25" {
		t.Fatalf("FormatScore = %q", got)
	}
	if got := Truncate("Analytical Engines Ltd", 10); got != "Analyti..." {
		t.Fatalf("Truncate = %q", got)
	}
}

func TestWorkspaceLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.sqlite")
	first, err := NewWorkspaceLock(path)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	second, err := NewWorkspaceLock(path)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = second.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the second process to give up waiting, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second release must be a no-op: %v", err)
	}
	if err := second.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}
