package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"DATABASE_URL", "REDIS_URL", "UPLOAD_DIR", "ANALYZER_URL",
		"MAX_UPLOAD_SIZE_MB", "ALLOWED_IMAGE_TYPES", "LLM_TEMPERATURE",
		"PRIMARY_MODEL", "FALLBACK_MODEL", "CORS_ORIGINS", "PORT",
		"WORKER_COUNT", "JOB_TIMEOUT", "POLL_INTERVAL", "HEARTBEAT_INTERVAL",
		"ANALYSIS_RETENTION_DAYS",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MaxUploadSizeMB != 10 {
		t.Errorf("expected default MaxUploadSizeMB=10, got %d", cfg.MaxUploadSizeMB)
	}
	if cfg.MaxUploadSizeBytes() != 10*1024*1024 {
		t.Errorf("expected MaxUploadSizeBytes=10MiB, got %d", cfg.MaxUploadSizeBytes())
	}
	if len(cfg.AllowedImageTypes) != 4 {
		t.Errorf("expected 4 default allowed image types, got %v", cfg.AllowedImageTypes)
	}
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := Config{MaxUploadSizeMB: 10, AllowedImageTypes: []string{"image/png"}, WorkerCount: 0, AnalyzerURL: "http://x"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for WorkerCount=0")
	}
}

func TestProviderRegistryOrder(t *testing.T) {
	reg := NewProviderRegistry([]ProviderConfig{
		{Name: "primary", Type: "anthropic"},
		{Name: "secondary", Type: "bedrock"},
	})
	ordered := reg.Ordered()
	if len(ordered) != 2 || ordered[0].Name != "primary" || ordered[1].Name != "secondary" {
		t.Errorf("unexpected order: %+v", ordered)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("expected missing provider to be absent")
	}
}
