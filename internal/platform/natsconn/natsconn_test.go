package natsconn

import (
	"testing"
	"time"
)

func TestWithDefaults_Fallbacks(t *testing.T) {
	opts := withDefaults(Options{})

	if opts.URL != "nats://nats:4222" {
		t.Fatalf("unexpected default URL %q", opts.URL)
	}
	if opts.MaxReconnects != 5 {
		t.Fatalf("expected 5 max reconnects, got %d", opts.MaxReconnects)
	}
	if opts.ReconnectWait != 2*time.Second {
		t.Fatalf("expected 2s reconnect wait, got %s", opts.ReconnectWait)
	}
}

func TestWithDefaults_EnvOverrides(t *testing.T) {
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("NATS_MAX_RECONNECTS", "9")
	t.Setenv("NATS_RECONNECT_WAIT", "500ms")

	opts := withDefaults(Options{})

	if opts.URL != "nats://broker:4222" || opts.MaxReconnects != 9 || opts.ReconnectWait != 500*time.Millisecond {
		t.Fatalf("env overrides not applied: %+v", opts)
	}
}

func TestWithDefaults_ExplicitValuesKept(t *testing.T) {
	t.Setenv("NATS_MAX_RECONNECTS", "9")

	opts := withDefaults(Options{
		URL:           "nats://explicit:4222",
		MaxReconnects: 3,
		ReconnectWait: time.Second,
	})

	if opts.URL != "nats://explicit:4222" || opts.MaxReconnects != 3 || opts.ReconnectWait != time.Second {
		t.Fatalf("explicit options overwritten: %+v", opts)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to unreachable NATS URL")
	}
}
