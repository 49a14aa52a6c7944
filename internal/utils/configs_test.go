package utils

import (
	"testing"
	"time"
)

func TestTypedConfigGetters(t *testing.T) {
	cm := NewConfigManager("")

	cm.SetConfig("test_duration", "250ms")
	if got := cm.GetConfigDuration("test_duration", time.Second); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
	if got := cm.GetConfigDuration("missing_duration", 3*time.Second); got != 3*time.Second {
		t.Errorf("Expected default 3s for missing key, got %v", got)
	}

	cm.SetConfig("test_int", 42)
	if got := cm.GetConfigInt("test_int", 1, 0, 100); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	// Out-of-range values fall back to the default
	if got := cm.GetConfigInt("test_int", 1, 0, 10); got != 1 {
		t.Errorf("Expected default 1 for out-of-range value, got %d", got)
	}

	cm.SetConfig("test_bool", "yes")
	if !cm.GetConfigBool("test_bool", false) {
		t.Error("Expected 'yes' to parse as true")
	}
	cm.SetConfig("test_bool", "garbage")
	if cm.GetConfigBool("test_bool", false) {
		t.Error("Expected invalid boolean to fall back to default")
	}

	cm.SetConfig("test_slice", "a.example:1, b.example:2 ,c.example:3")
	slice := cm.GetConfigSlice("test_slice", nil)
	if len(slice) != 3 || slice[0] != "a.example:1" || slice[1] != "b.example:2" || slice[2] != "c.example:3" {
		t.Errorf("Expected trimmed three-element slice, got %v", slice)
	}
}

func TestSetConfigOverrides(t *testing.T) {
	cm := NewConfigManager("")

	cm.SetConfig("bootstrap_prefer_ipv6", true)
	if !cm.GetConfigBool("bootstrap_prefer_ipv6", false) {
		t.Error("Expected runtime override to take effect")
	}

	cm.SetConfig("bootstrap_candidate_timeout", 7*time.Second)
	if got := cm.GetConfigDuration("bootstrap_candidate_timeout", time.Second); got != 7*time.Second {
		t.Errorf("Expected 7s, got %v", got)
	}
}
