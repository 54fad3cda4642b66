package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

// TestConfigLoad はデフォルト設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 引数のデフォルト値
	if cfg.Device.ID != 0 {
		t.Errorf("デバイスIDのデフォルトが0ではありません: %d", cfg.Device.ID)
	}
	if cfg.Device.Width != 640 {
		t.Errorf("幅のデフォルトが640ではありません: %d", cfg.Device.Width)
	}
	if cfg.Device.Height != 512 {
		t.Errorf("高さのデフォルトが512ではありません: %d", cfg.Device.Height)
	}
	if cfg.Device.Mode != 0 {
		t.Errorf("モードのデフォルトが0ではありません: %d", cfg.Device.Mode)
	}
	if cfg.Debug {
		t.Error("デバッグのデフォルトがオンになっています")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	if cfg.Stream.MinDelay != 10*time.Millisecond || cfg.Stream.DefaultDelay != 40*time.Millisecond {
		t.Errorf("フレーム間隔のデフォルトが不正です: %s / %s", cfg.Stream.MinDelay, cfg.Stream.DefaultDelay)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{"正常な設定", func(c *Config) {}, false},
		{"simドライバー", func(c *Config) { c.Driver.Kind = "sim" }, false},
		{"無効なポート番号", func(c *Config) { c.Server.Port = 99999 }, true},
		{"負のデバイスインデックス", func(c *Config) { c.Device.ID = -1 }, true},
		{"幅が0", func(c *Config) { c.Device.Width = 0 }, true},
		{"高さが負", func(c *Config) { c.Device.Height = -512 }, true},
		{"未定義のビデオモード", func(c *Config) { c.Device.Mode = 8 }, true},
		{"未知のドライバー", func(c *Config) { c.Driver.Kind = "v4l2" }, true},
		{"JPEG品質が範囲外", func(c *Config) { c.Stream.MaxQuality = 101 }, true},
		{"負のフレーム間隔", func(c *Config) { c.Stream.MinDelay = -time.Second }, true},
		{"未知のログフォーマット", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestDeviceInfo はストリーム用デバイス情報の変換をテストする
func TestDeviceInfo(t *testing.T) {
	cfg := Default()
	cfg.Device.Width = 384
	cfg.Device.Height = 288
	cfg.Device.Mode = 6

	info := cfg.DeviceInfo()
	if info.Width != 384 || info.Height != 288 || int(info.VideoMode) != 6 {
		t.Errorf("デバイス情報が一致しません: %+v", info)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("GAVIN_DEVICE_WIDTH", "384")
	t.Setenv("GAVIN_SERVER_PORT", "9999")

	v := newViper(t)
	if err := ReadInConfig(v, ""); err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Device.Width != 384 {
		t.Errorf("環境変数の幅が反映されていません: got %d, want 384", cfg.Device.Width)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
}

// TestConfigFile はYAML設定ファイルの読み込みをテストする
func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gavin.yaml")
	content := []byte(`device:
  id: 1
  mode: 3
driver:
  kind: sim
stream:
  min_delay: 20ms
  channel: "1"
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	v := newViper(t)
	if err := ReadInConfig(v, path); err != nil {
		t.Fatalf("設定ファイルの読み込みに失敗しました: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("設定の検証に失敗しました: %v", err)
	}

	if cfg.Device.ID != 1 || cfg.Device.Mode != 3 {
		t.Errorf("デバイス設定が反映されていません: %+v", cfg.Device)
	}
	if cfg.Device.Width != 640 {
		t.Errorf("ファイルにない値はデフォルトのはずです: %d", cfg.Device.Width)
	}
	if cfg.Driver.Kind != "sim" {
		t.Errorf("ドライバー種別が反映されていません: %s", cfg.Driver.Kind)
	}
	if cfg.Stream.MinDelay != 20*time.Millisecond || cfg.Stream.Channel != "1" {
		t.Errorf("配信設定が反映されていません: %+v", cfg.Stream)
	}
}

// TestConfigFileMissing は明示したファイルが無い場合にエラーになることをテストする
func TestConfigFileMissing(t *testing.T) {
	v := newViper(t)
	if err := ReadInConfig(v, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("存在しない設定ファイルでエラーになりませんでした")
	}
}

// TestHubOptions は配信設定の変換をテストする
func TestHubOptions(t *testing.T) {
	cfg := Default()
	cfg.Stream.Channel = "1"
	cfg.Stream.MaxQuality = 70

	opts := cfg.HubOptions()
	if opts.DefaultChannel != "1" || opts.MaxQuality != 70 {
		t.Errorf("unexpected hub options: %+v", opts)
	}
	if opts.MinDelay != 10*time.Millisecond || opts.DefaultDelay != 40*time.Millisecond {
		t.Errorf("unexpected delays: %+v", opts)
	}
	if !cfg.Stream.Mosaic {
		t.Error("mosaic should be enabled by default")
	}
}
