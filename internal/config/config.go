// Package config はアプリケーション設定の読み込みと検証を担う
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"gavin/internal/guide"
	"gavin/internal/mjpeg"
)

// EnvPrefix は環境変数のプレフィックス（例: GAVIN_DEVICE_WIDTH）
const EnvPrefix = "GAVIN"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Device DeviceConfig `mapstructure:"device" yaml:"device"`
	Driver DriverConfig `mapstructure:"driver" yaml:"driver"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Stream StreamConfig `mapstructure:"stream" yaml:"stream"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`

	// Debug はログレベルをDEBUGに上げる
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DeviceConfig は開くデバイスとストリームの設定
type DeviceConfig struct {
	ID      int `mapstructure:"id" yaml:"id"`           // 列挙されたデバイス一覧のインデックス
	Width   int `mapstructure:"width" yaml:"width"`     // 画像幅
	Height  int `mapstructure:"height" yaml:"height"`   // 画像高さ
	Mode    int `mapstructure:"mode" yaml:"mode"`       // ビデオモード (0-7)
	Palette int `mapstructure:"palette" yaml:"palette"` // パレット番号（-1なら設定しない）
}

// DriverConfig はSDKドライバーの設定
type DriverConfig struct {
	Kind    string `mapstructure:"kind" yaml:"kind"`       // dll / sim
	Library string `mapstructure:"library" yaml:"library"` // DLLのパス
	FPS     int    `mapstructure:"fps" yaml:"fps"`         // simのフレームレート
	Devices int    `mapstructure:"devices" yaml:"devices"` // simのデバイス数
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"` // リッスンするホスト
	Port int    `mapstructure:"port" yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`   // 読み込みタイムアウト
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"` // 書き込みタイムアウト
}

// StreamConfig はMJPEG配信の設定
type StreamConfig struct {
	Channel        string        `mapstructure:"channel" yaml:"channel"`                 // チャンネル未指定時のデフォルト
	MinDelay       time.Duration `mapstructure:"min_delay" yaml:"min_delay"`             // フレーム間隔の下限
	DefaultDelay   time.Duration `mapstructure:"default_delay" yaml:"default_delay"`     // クライアント毎のデフォルト間隔
	MaxQuality     int           `mapstructure:"max_quality" yaml:"max_quality"`         // JPEG品質の上限
	DefaultQuality int           `mapstructure:"default_quality" yaml:"default_quality"` // デフォルトのJPEG品質
	Mosaic         bool          `mapstructure:"mosaic" yaml:"mosaic"`                   // 全チャンネルを並べた mosaic チャンネルを配信する
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"` // 空なら標準エラー出力
}

// Default はデフォルト設定を返す
func Default() Config {
	return Config{
		Device: DeviceConfig{
			ID:      0,
			Width:   640,
			Height:  512,
			Mode:    0,
			Palette: -1,
		},
		Driver: DriverConfig{
			Kind:    string(guide.KindDLL),
			Library: guide.DefaultLibrary,
			FPS:     25,
			Devices: 1,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Stream: StreamConfig{
			Channel:        "0",
			MinDelay:       10 * time.Millisecond,
			DefaultDelay:   40 * time.Millisecond,
			MaxQuality:     95,
			DefaultQuality: 80,
			Mosaic:         true,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// SetDefaults はviperにデフォルト値を登録する
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("device.id", d.Device.ID)
	v.SetDefault("device.width", d.Device.Width)
	v.SetDefault("device.height", d.Device.Height)
	v.SetDefault("device.mode", d.Device.Mode)
	v.SetDefault("device.palette", d.Device.Palette)

	v.SetDefault("driver.kind", d.Driver.Kind)
	v.SetDefault("driver.library", d.Driver.Library)
	v.SetDefault("driver.fps", d.Driver.FPS)
	v.SetDefault("driver.devices", d.Driver.Devices)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("stream.channel", d.Stream.Channel)
	v.SetDefault("stream.min_delay", d.Stream.MinDelay)
	v.SetDefault("stream.default_delay", d.Stream.DefaultDelay)
	v.SetDefault("stream.max_quality", d.Stream.MaxQuality)
	v.SetDefault("stream.default_quality", d.Stream.DefaultQuality)
	v.SetDefault("stream.mosaic", d.Stream.Mosaic)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("debug", d.Debug)
}

// ReadInConfig は設定ファイルと環境変数を読み込む
// pathが空の場合、設定ファイルが見つからなくてもエラーにしない
func ReadInConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gavin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/gavin")
	}

	v.SetEnvPrefix(EnvPrefix)
	// device.width → GAVIN_DEVICE_WIDTH
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	return nil
}

// Load はviperの内容から設定を組み立てて検証する
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の変換に失敗: %w", err)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return &cfg, nil
}

// Watch は設定ファイルの変更を監視し、検証済みの設定をonChangeへ渡す
// 設定ファイルを使っていない場合は何もしない
func Watch(v *viper.Viper, onChange func(cfg *Config, err error)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		onChange(Load(v))
	})
	v.WatchConfig()
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// デバイス設定の検証
	if c.Device.ID < 0 {
		return fmt.Errorf("無効なデバイスインデックス: %d", c.Device.ID)
	}
	if c.Device.Width <= 0 || c.Device.Width > 4096 {
		return fmt.Errorf("無効な幅: %d", c.Device.Width)
	}
	if c.Device.Height <= 0 || c.Device.Height > 4096 {
		return fmt.Errorf("無効な高さ: %d", c.Device.Height)
	}
	if !guide.VideoMode(c.Device.Mode).Valid() {
		return fmt.Errorf("無効なビデオモード: %d", c.Device.Mode)
	}
	if c.Device.Palette < -1 {
		return fmt.Errorf("無効なパレット番号: %d", c.Device.Palette)
	}

	// ドライバー設定の検証
	switch guide.Kind(c.Driver.Kind) {
	case guide.KindDLL, guide.KindSim:
	default:
		return fmt.Errorf("無効なドライバー種別: %q", c.Driver.Kind)
	}
	if c.Driver.FPS <= 0 || c.Driver.FPS > 120 {
		return fmt.Errorf("無効なFPS値: %d", c.Driver.FPS)
	}
	if c.Driver.Devices < 1 || c.Driver.Devices > guide.MaxDevices {
		return fmt.Errorf("無効なデバイス数: %d", c.Driver.Devices)
	}

	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// 配信設定の検証
	if c.Stream.MinDelay < 0 || c.Stream.DefaultDelay < 0 {
		return fmt.Errorf("無効なフレーム間隔: min=%s default=%s", c.Stream.MinDelay, c.Stream.DefaultDelay)
	}
	if c.Stream.MaxQuality < 1 || c.Stream.MaxQuality > 100 {
		return fmt.Errorf("無効なJPEG品質上限: %d", c.Stream.MaxQuality)
	}
	if c.Stream.DefaultQuality < 1 || c.Stream.DefaultQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Stream.DefaultQuality)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("無効なログフォーマット: %q", c.Log.Format)
	}

	return nil
}

// DeviceInfo はストリームを開く際のデバイス情報を返す
func (c *Config) DeviceInfo() guide.DeviceInfo {
	return guide.DeviceInfo{
		Width:     int32(c.Device.Width),
		Height:    int32(c.Device.Height),
		VideoMode: guide.VideoMode(c.Device.Mode),
	}
}

// DriverOptions はドライバー作成用の設定を返す
func (c *Config) DriverOptions() guide.Options {
	return guide.Options{
		Kind:    guide.Kind(c.Driver.Kind),
		Library: c.Driver.Library,
		FPS:     c.Driver.FPS,
		Devices: c.Driver.Devices,
	}
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HubOptions はMJPEG配信ハブの設定を返す
func (c *Config) HubOptions() mjpeg.Options {
	return mjpeg.Options{
		DefaultChannel: c.Stream.Channel,
		MinDelay:       c.Stream.MinDelay,
		DefaultDelay:   c.Stream.DefaultDelay,
		MaxQuality:     c.Stream.MaxQuality,
		DefaultQuality: c.Stream.DefaultQuality,
	}
}
