package envutil

import (
	"testing"
	"time"
)

func TestEnvParsing(t *testing.T) {
	t.Setenv("EE_INT", "42")
	t.Setenv("EE_BAD_INT", "x")
	t.Setenv("EE_FLOAT", "0.8")
	t.Setenv("EE_BOOL", "off")
	t.Setenv("EE_DUR", "90s")
	t.Setenv("EE_DUR_SECS", "30")
	t.Setenv("EE_STR", "  stripe ")

	if got := Int("EE_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("EE_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if got := Float("EE_FLOAT", 0.7); got != 0.8 {
		t.Fatalf("Float: got %v", got)
	}
	if got := Bool("EE_BOOL", true); got {
		t.Fatalf("Bool: expected false")
	}
	if got := Bool("EE_MISSING", true); !got {
		t.Fatalf("Bool default: expected true")
	}
	if got := Duration("EE_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("Duration: got %v", got)
	}
	if got := Duration("EE_DUR_SECS", time.Second); got != 30*time.Second {
		t.Fatalf("Duration secs: got %v", got)
	}
	if got := String("EE_STR", ""); got != "stripe" {
		t.Fatalf("String: got %q", got)
	}
}
