package logger

import (
	"context"
	"testing"
)

func TestNewNamedLogger(t *testing.T) {
	log, err := New(Config{Level: "debug", Encoding: "console", Name: "obey-backend"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.Name() != "obey-backend" {
		t.Errorf("logger name = %q, want obey-backend", log.Name())
	}
}

func TestNewToleratesBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "nonsense"}); err != nil {
		t.Fatalf("unparsable level must fall back, got %v", err)
	}
}

func TestWithRequestID(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := ContextWithRequestID(context.Background(), "req-1")
	if WithRequestID(ctx, log) == log {
		t.Error("context with a request id must yield an enriched logger")
	}
	if WithRequestID(context.Background(), log) != log {
		t.Error("context without a request id must return the base logger")
	}
}
