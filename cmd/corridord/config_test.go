package main

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_DebounceValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid debounce from flag",
			args:        []string{"-rebuild-debounce", "250ms"},
			expectError: false,
		},
		{
			name:        "zero debounce is allowed",
			args:        []string{"-rebuild-debounce", "0s"},
			expectError: false,
		},
		{
			name:        "negative debounce from flag",
			args:        []string{"-rebuild-debounce", "-1s"},
			expectError: true,
			errorSubstr: "rebuild debounce cannot be negative",
		},
		{
			name:        "valid debounce from env",
			envVars:     map[string]string{"CORRIDORD_REBUILD_DEBOUNCE": "1s"},
			expectError: false,
		},
		{
			name:        "invalid debounce format from flag",
			args:        []string{"-rebuild-debounce", "invalid"},
			expectError: true,
			errorSubstr: "invalid rebuild debounce",
		},
		{
			name:        "invalid debounce format from env",
			envVars:     map[string]string{"CORRIDORD_REBUILD_DEBOUNCE": "invalid"},
			expectError: true,
			errorSubstr: "invalid CORRIDORD_REBUILD_DEBOUNCE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				} else if cfg.RebuildDebounce < 0 {
					t.Errorf("expected non-negative debounce, got %v", cfg.RebuildDebounce)
				}
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("expected default addr %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.RebuildDebounce != 500*time.Millisecond {
		t.Errorf("expected default debounce of 500ms, got %v", cfg.RebuildDebounce)
	}
	if !strings.HasSuffix(cfg.DBPath, "corridord.db") {
		t.Errorf("expected default db path ending in corridord.db, got %s", cfg.DBPath)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("expected sqlite by default, got redis addr %q", cfg.RedisAddr)
	}
}

func TestLoadConfig_EnvAddr(t *testing.T) {
	os.Setenv("CORRIDORD_PORT", "9999")
	defer os.Unsetenv("CORRIDORD_PORT")

	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("expected addr from CORRIDORD_PORT, got %s", cfg.Addr)
	}
}
