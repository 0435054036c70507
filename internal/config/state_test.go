package config

import "testing"

func TestGetFeatureFlagDefaults(t *testing.T) {
	SetCurrent(nil)
	if GetFeatureFlag("disable_snapshot_cache") {
		t.Fatalf("flag must default to false when no config is loaded")
	}

	SetCurrent(&Config{})
	if GetFeatureFlag("disable_snapshot_cache") {
		t.Fatalf("flag must default to false when flags map is absent")
	}

	SetCurrent(&Config{FeatureFlags: map[string]bool{"disable_snapshot_cache": true}})
	if !GetFeatureFlag("disable_snapshot_cache") {
		t.Fatalf("configured flag not returned")
	}
	if GetFeatureFlag("unknown_flag") {
		t.Fatalf("unknown flag must be false")
	}
}

func TestGetThreshold(t *testing.T) {
	SetCurrent(nil)
	if got := GetThreshold("max_bet_amount", 10000); got != 10000 {
		t.Fatalf("default must be returned when no config is loaded, got %d", got)
	}

	SetCurrent(&Config{Thresholds: map[string]int64{"max_bet_amount": 500}})
	if got := GetThreshold("max_bet_amount", 10000); got != 500 {
		t.Fatalf("configured threshold not returned, got %d", got)
	}
	if got := GetThreshold("unknown_threshold", 7); got != 7 {
		t.Fatalf("unknown threshold must fall back to default, got %d", got)
	}
}
