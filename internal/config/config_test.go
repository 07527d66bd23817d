package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.Storage.Driver != "sqlite" || cfg.Backpressure != "kick" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.Limits.Window != 10*time.Second {
		t.Fatalf("durations not decoded: ping=%v window=%v", cfg.PingPeriod, cfg.Limits.Window)
	}
	if cfg.Auth.TrustPayloadUserID {
		t.Fatal("payload user ids must not be trusted by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JUKEBOX_STORAGE_DRIVER", "memory")
	t.Setenv("JUKEBOX_PORT", "9090")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Port != 9090 {
		t.Fatalf("env not applied: driver=%s port=%d", cfg.Storage.Driver, cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	ok := Config{Port: 80, Backpressure: "drop", Storage: StorageConfig{Driver: "valkey"}}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := []Config{
		{Port: 80, Backpressure: "kick", Storage: StorageConfig{Driver: "postgres"}},
		{Port: 80, Backpressure: "ignore", Storage: StorageConfig{Driver: "memory"}},
		{Port: 0, Backpressure: "kick", Storage: StorageConfig{Driver: "memory"}},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}
