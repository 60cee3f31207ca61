package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Recognition.Threshold != 0.45 {
		t.Errorf("Recognition.Threshold = %v, want 0.45", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.MinMargin != 0.10 {
		t.Errorf("Recognition.MinMargin = %v, want 0.10", cfg.Recognition.MinMargin)
	}
	if cfg.Recognition.EmbeddingDim != 512 {
		t.Errorf("Recognition.EmbeddingDim = %v, want 512", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Session.WarmupFrames != 34 {
		t.Errorf("Session.WarmupFrames = %v, want 34", cfg.Session.WarmupFrames)
	}
	if cfg.Session.AcceptAfter != 6 {
		t.Errorf("Session.AcceptAfter = %v, want 6", cfg.Session.AcceptAfter)
	}
	if cfg.Session.TimeoutAfter != 16 {
		t.Errorf("Session.TimeoutAfter = %v, want 16", cfg.Session.TimeoutAfter)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.6")
	t.Setenv("SESSION_WARMUP_FRAMES", "10")
	t.Setenv("HR_TIMEZONE", "Europe/Prague")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.Recognition.Threshold != 0.6 {
		t.Errorf("Recognition.Threshold = %v, want 0.6", cfg.Recognition.Threshold)
	}
	if cfg.Session.WarmupFrames != 10 {
		t.Errorf("Session.WarmupFrames = %v, want 10", cfg.Session.WarmupFrames)
	}
	if cfg.HR.Timezone != "Europe/Prague" {
		t.Errorf("HR.Timezone = %q, want Europe/Prague", cfg.HR.Timezone)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("SESSION_WARMUP_FRAMES", "not-a-number")
	t.Setenv("MATCH_THRESHOLD", "")

	cfg := Load()

	if cfg.Session.WarmupFrames != 34 {
		t.Errorf("Session.WarmupFrames = %v, want default 34", cfg.Session.WarmupFrames)
	}
	if cfg.Recognition.Threshold != 0.45 {
		t.Errorf("Recognition.Threshold = %v, want default 0.45", cfg.Recognition.Threshold)
	}
}
