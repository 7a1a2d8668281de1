package cli

import (
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestLoadConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != path {
		t.Errorf("Path = %q", cfg.Path())
	}
	// Reload parses what was just created.
	if _, err := LoadConfig(path); err != nil {
		t.Fatal(err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	err := cfg.AddContext("staging", &Context{
		Server:  ":8080",
		DataDir: "/var/lib/admitline",
		Inference: []InferenceCredential{
			{Name: "primary", APIKey: "gsk-1"},
			{Name: "backup", APIKey: "gsk-2"},
		},
		Models: []string{"llama-3.1-8b-instant"},
		TTS:    TTSConfig{APIKey: "el-key", VoiceID: "v1"},
		Docs:   DocsConfig{Dir: "./docs"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// First context becomes current.
	if cfg.CurrentContext != "staging" {
		t.Errorf("CurrentContext = %q", cfg.CurrentContext)
	}

	loaded, err := LoadConfig(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := loaded.ResolveContext("")
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Server != ":8080" || len(ctx.Inference) != 2 {
		t.Errorf("context = %+v", ctx)
	}
	if ctx.Inference[0].Name != "primary" {
		t.Errorf("credential order not preserved: %+v", ctx.Inference)
	}
}

func TestUseAndDeleteContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.AddContext("a", &Context{})
	cfg.AddContext("b", &Context{})
	if err := cfg.UseContext("b"); err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentContext != "b" {
		t.Errorf("CurrentContext = %q", cfg.CurrentContext)
	}
	if err := cfg.DeleteContext("b"); err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentContext != "" {
		t.Error("deleting current context should clear selection")
	}
	if err := cfg.UseContext("missing"); err == nil {
		t.Error("unknown context should error")
	}
}

func TestResolveContextNoneSelected(t *testing.T) {
	cfg := testConfig(t)
	if _, err := cfg.ResolveContext(""); err == nil {
		t.Error("empty config should report no context selected")
	}
}
