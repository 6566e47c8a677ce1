package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, created, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !created {
		t.Error("Load reported an existing file for an empty directory")
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.GetApplicationData().API.Port != DefaultAPIPort {
		t.Errorf("API port = %d, want %d", cfg.GetApplicationData().API.Port, DefaultAPIPort)
	}

	_, created, err = Load(dir)
	if err != nil {
		t.Fatalf("second Load error: %v", err)
	}
	if created {
		t.Error("second Load reported a new file")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := `{"codec": {"send_multiple": 9, "capture_direction": "server"}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	codec := cfg.GetCodec()
	if codec.SendMultiple != 9 || codec.Direction != DirectionServer {
		t.Errorf("codec = %+v, want send_multiple 9 and server direction", codec)
	}
	if cfg.GetApplicationData().Capture.RetentionDays != 14 {
		t.Errorf("retention days = %d, want default 14", cfg.GetApplicationData().Capture.RetentionDays)
	}

	// the re-save fills in the missing defaults
	raw, _ := os.ReadFile(filepath.Join(dir, DefaultConfigFile))
	if !strings.Contains(string(raw), "retention_days") {
		t.Error("re-saved config is missing default fields")
	}
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(dir); err == nil {
		t.Fatal("Load accepted broken JSON")
	}
}

func TestUpdateFields(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.UpdateCodecField("recv_multiple", 11); err != nil {
		t.Fatalf("UpdateCodecField error: %v", err)
	}
	if got := cfg.GetCodec().RecvMultiple; got != 11 {
		t.Errorf("RecvMultiple = %d, want 11", got)
	}

	if err := cfg.UpdateCodecField("no_such_field", 1); err == nil {
		t.Error("UpdateCodecField accepted an unknown key")
	}

	err := cfg.UpdateAppField("api", map[string]interface{}{"enabled": false, "host": "0.0.0.0", "port": 9000})
	if err != nil {
		t.Fatalf("UpdateAppField error: %v", err)
	}
	if api := cfg.GetApplicationData().API; api.Enabled || api.Port != 9000 {
		t.Errorf("API = %+v", api)
	}
}

func TestValidateDefaults(t *testing.T) {
	result := Validate(DefaultConfig())
	if !result.IsValid() {
		t.Fatalf("default config is invalid: %v", result.Errors)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"multiple_too_large", func(c *Config) { c.Codec.SendMultiple = 300 }, "codec.send_multiple"},
		{"negative_multiple", func(c *Config) { c.Codec.RecvMultiple = -1 }, "codec.recv_multiple"},
		{"bad_direction", func(c *Config) { c.Codec.Direction = "sideways" }, "codec.capture_direction"},
		{"sequence_overflow", func(c *Config) { c.Codec.SequenceStart = 70000 }, "codec.sequence_start"},
		{"bad_port", func(c *Config) { c.ApplicationData.API.Port = 70000 }, "application_data.api.port"},
		{"bad_cleanup_time", func(c *Config) { c.ApplicationData.Capture.CleanupTime = "4pm" }, "application_data.capture.cleanup_time"},
		{"no_database", func(c *Config) { c.ApplicationData.Capture.DatabasePath = " " }, "application_data.capture.database_path"},
		{"mqtt_without_broker", func(c *Config) {
			c.ApplicationData.MQTT.Enabled = true
			c.ApplicationData.MQTT.BrokerURL = ""
		}, "application_data.mqtt.broker_url"},
		{"tls_without_cert", func(c *Config) { c.ApplicationData.Security.TLSEnabled = true }, "application_data.security.tls_cert_file"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			result := Validate(cfg)
			if result.IsValid() {
				t.Fatal("Validate() reported valid")
			}
			found := false
			for _, e := range result.Errors {
				if e.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %s", result.Errors, tc.field)
			}
		})
	}
}

func TestValidateWarnsOnUnusualMultiple(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec.SendMultiple = 3
	result := Validate(cfg)
	if !result.IsValid() {
		t.Fatalf("errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("no warning for a multiple outside 6-12")
	}
}

func TestSetupWizard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), DefaultConfigFile))

	answers := strings.Join([]string{
		"server", // direction
		"7",      // send multiple
		"8",      // recv multiple
		"",       // sequence start
		"yes",    // strict
		"",       // api enabled
		"",       // api host
		"9090",   // api port
		"",       // database
		"30",     // retention
		"no",     // mqtt
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := RunSetupWizard(cfg, strings.NewReader(answers), &out); err != nil {
		t.Fatalf("RunSetupWizard error: %v\n%s", err, out.String())
	}

	codec := cfg.GetCodec()
	if codec.Direction != DirectionServer || codec.SendMultiple != 7 || codec.RecvMultiple != 8 || !codec.StrictSequence {
		t.Errorf("codec = %+v", codec)
	}
	app := cfg.GetApplicationData()
	if app.API.Port != 9090 || app.Capture.RetentionDays != 30 {
		t.Errorf("application data = %+v", app)
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Errorf("wizard did not save: %v", err)
	}
}

func TestSetupWizardRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), DefaultConfigFile))

	answers := "sideways\n\n\n\n\n\n\n\n\n\n\nno\n"
	var out bytes.Buffer
	if err := RunSetupWizard(cfg, strings.NewReader(answers), &out); err == nil {
		t.Fatal("RunSetupWizard accepted an invalid direction")
	}
}
