package httpclient

import (
	"testing"
	"time"
)

func TestGetInstanceSharesPerConfig(t *testing.T) {
	ResetInstances()
	defer ResetInstances()

	cfg := Config{BaseURL: "http://registry.local", Timeout: time.Second, Retries: 2}
	a := GetInstance(cfg)
	b := GetInstance(cfg)
	if a != b {
		t.Error("identical configs should share one client")
	}

	other := cfg
	other.Retries = 3
	if GetInstance(other) == a {
		t.Error("different retries should yield a different client")
	}

	tuned := cfg
	tuned.RetryBase = 50 * time.Millisecond
	if GetInstance(tuned) == a {
		t.Error("different retry tuning should yield a different client")
	}
}

func TestGetInstanceHeaderOrderIndependent(t *testing.T) {
	ResetInstances()
	defer ResetInstances()

	a := GetInstance(Config{
		BaseURL:        "http://registry.local",
		DefaultHeaders: map[string]string{"A": "1", "B": "2", "C": "3"},
	})
	b := GetInstance(Config{
		BaseURL:        "http://registry.local",
		DefaultHeaders: map[string]string{"C": "3", "A": "1", "B": "2"},
	})
	if a != b {
		t.Error("header insertion order must not split instances")
	}

	c := GetInstance(Config{
		BaseURL:        "http://registry.local",
		DefaultHeaders: map[string]string{"A": "1", "B": "2", "C": "changed"},
	})
	if c == a {
		t.Error("different header values should yield a different client")
	}
}

func TestResetInstances(t *testing.T) {
	ResetInstances()

	cfg := Config{BaseURL: "http://registry.local"}
	a := GetInstance(cfg)
	ResetInstances()
	b := GetInstance(cfg)
	if a == b {
		t.Error("ResetInstances should drop shared clients")
	}
	ResetInstances()
}
