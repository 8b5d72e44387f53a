package util

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "duration string", value: "90s", want: 90 * time.Second},
		{name: "bare seconds", value: "3600", want: time.Hour},
		{name: "garbage falls back", value: "soon", want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RIPPLE_TEST_DURATION", tt.value)
			got := GetEnvDuration("RIPPLE_TEST_DURATION", 5*time.Second)
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool_OnlyLiteralValues(t *testing.T) {
	t.Setenv("RIPPLE_TEST_BOOL", "yes")
	if got := GetEnvBool("RIPPLE_TEST_BOOL", false); got {
		t.Fatal("expected default for non-literal value")
	}
	t.Setenv("RIPPLE_TEST_BOOL", "true")
	if got := GetEnvBool("RIPPLE_TEST_BOOL", false); !got {
		t.Fatal("expected true")
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("RIPPLE_TEST_REQUIRED", "")
	if _, err := RequireEnv("RIPPLE_TEST_REQUIRED"); err == nil {
		t.Fatal("expected error for empty value")
	}
	t.Setenv("RIPPLE_TEST_REQUIRED", "key")
	got, err := RequireEnv("RIPPLE_TEST_REQUIRED")
	if err != nil || got != "key" {
		t.Fatalf("got (%q, %v)", got, err)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("RIPPLE_TEST_INT", "12")
	if got := GetEnvInt("RIPPLE_TEST_INT", 3); got != 12 {
		t.Fatalf("got %d, want 12", got)
	}
	t.Setenv("RIPPLE_TEST_INT", "1.5")
	if got := GetEnvInt("RIPPLE_TEST_INT", 3); got != 3 {
		t.Fatalf("got %d, want default 3", got)
	}
}
