package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("provider.app_id", "test-app-id")
	v.Set("telegram.bot_token", "123:abc")
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 600, cfg.Cache.FreshnessWindowSec)
	assert.Equal(t, 10, cfg.Provider.TimeoutSec)
	assert.Equal(t, 0, cfg.Render.TimeoutSec)
	assert.Equal(t, "postgres://postgres:postgres@db:5432/fxbot?sslmode=disable", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *viper.Viper)
		wantErr string
	}{
		{"missing app id", func(v *viper.Viper) { v.Set("provider.app_id", "") }, "provider.app_id is required"},
		{"unknown driver", func(v *viper.Viper) { v.Set("store.driver", "mongo") }, "store.driver must be one of"},
		{"sqlite without path", func(v *viper.Viper) {
			v.Set("store.driver", StoreDriverSQLite)
			v.Set("store.sqlite_path", "")
		}, "store.sqlite_path is required"},
		{"bad freshness", func(v *viper.Viper) { v.Set("cache.freshness_window_sec", 0) }, "cache.freshness_window_sec must be positive"},
		{"zero render concurrency", func(v *viper.Viper) { v.Set("render.concurrency", 0) }, "render.concurrency must be positive"},
		{"telegram without token", func(v *viper.Viper) { v.Set("telegram.bot_token", "") }, "telegram.bot_token is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestViper()
			tc.mutate(v)
			_, err := fromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_TelegramDisabled(t *testing.T) {
	v := newTestViper()
	v.Set("telegram.enabled", false)
	v.Set("telegram.bot_token", "")
	v.Set("store.driver", StoreDriverWAL)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "data/wal", cfg.Store.WALDir)
}
