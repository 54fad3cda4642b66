// Package cli はgavinのコマンドライン（cobra + viper）を定義する
package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gavin/internal/config"
	"gavin/internal/guide"
	"gavin/internal/logging"
)

// env は1回のコマンド実行で共有する状態
type env struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	out        io.Writer
	logWriter  io.Writer // nilならstderr
	logFile    *os.File
	newDriver  func(guide.Options) (guide.Driver, error)

	// defaultLogFile は log.file 未設定時のログファイル（空ならstderr）
	defaultLogFile string
}

// runner はコマンドの本体
type runner func(ctx context.Context, e *env) error

func newEnv() *env {
	v := viper.New()
	config.SetDefaults(v)
	return &env{
		v:         v,
		newDriver: guide.New,
	}
}

// load は設定ファイル・環境変数・フラグから設定を組み立てる
func (e *env) load(cmd *cobra.Command) error {
	if err := config.ReadInConfig(e.v, e.configPath); err != nil {
		return err
	}
	cfg, err := config.Load(e.v)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.out = cmd.OutOrStdout()

	if e.logWriter == nil {
		path := cmp.Or(cfg.Log.File, e.defaultLogFile)
		if path != "" {
			f, err := openLogFile(path)
			if err != nil {
				return err
			}
			e.logFile = f
			e.logWriter = f
		}
	}
	if e.logger == nil {
		e.logger = logging.New(e.loggerOptions())
	}
	return nil
}

// openLogFile はログファイルを開く
func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ログファイルを開けません: %w", err)
	}
	return f, nil
}

// close はコマンドが開いたファイルを閉じる
func (e *env) close() {
	if e.logFile != nil {
		_ = e.logFile.Close()
		e.logFile = nil
	}
}

func (e *env) loggerOptions() logging.Options {
	return logging.Options{
		Level:  e.cfg.Log.Level,
		Format: e.cfg.Log.Format,
		Debug:  e.cfg.Debug,
		Writer: e.logWriter,
	}
}

// command はrunを実行するRunEを返す
func (e *env) command(run runner) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if err := e.load(cmd); err != nil {
			return err
		}
		defer e.close()
		return run(cmd.Context(), e)
	}
}

// bind はフラグをviperのキーに結び付ける
func (e *env) bind(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := e.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("フラグ %s のバインドに失敗: %v", name, err))
		}
	}
}

// addCommonFlags は全コマンド共通のフラグを登録する
func (e *env) addCommonFlags(cmd *cobra.Command) {
	d := config.Default()
	flags := cmd.Flags()

	flags.StringVarP(&e.configPath, "config", "c", "", "設定ファイル (デフォルト: ./gavin.yaml, $HOME/.config/gavin/gavin.yaml)")
	flags.String("driver", d.Driver.Kind, "SDKドライバー (dll, sim)")
	flags.String("library", d.Driver.Library, "GuideUSB3LiveStream.dll のパス")

	e.bind(flags, map[string]string{
		"driver":  "driver.kind",
		"library": "driver.library",
	})
}

// addDeviceFlags はストリームを開くコマンドのフラグを登録する
func (e *env) addDeviceFlags(cmd *cobra.Command) {
	d := config.Default()
	flags := cmd.Flags()

	flags.Int("id", d.Device.ID, "デバイスインデックス")
	flags.Int("width", d.Device.Width, "画像幅")
	flags.Int("height", d.Device.Height, "画像高さ")
	flags.Int("mode", d.Device.Mode, "ビデオモード (0-7)")
	flags.Int("palette", d.Device.Palette, "パレット番号 (-1なら変更しない)")

	e.bind(flags, map[string]string{
		"id":      "device.id",
		"width":   "device.width",
		"height":  "device.height",
		"mode":    "device.mode",
		"palette": "device.palette",
	})
}

// addServerFlags はHTTPサーバーのフラグを登録する
func (e *env) addServerFlags(cmd *cobra.Command) {
	d := config.Default()
	flags := cmd.Flags()

	flags.String("host", d.Server.Host, "サーバーのホスト")
	flags.Int("port", d.Server.Port, "サーバーのポート")

	e.bind(flags, map[string]string{
		"host": "server.host",
		"port": "server.port",
	})
}

// addDebugFlag はログレベルをDEBUGにするフラグを登録する
func (e *env) addDebugFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("debug", false, "デバッグログを出力する")
	e.bind(cmd.Flags(), map[string]string{"debug": "debug"})
}

// NewRootCommand は gavin コマンドを作成する
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gavin",
		Short:         "Guide USB3 サーマルカメラのストリーミングツール",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := NewServerCommand()
	server.Use = "server"
	gui := NewGUICommand()
	gui.Use = "gui"

	root.AddCommand(server, gui, newDevicesCommand(newEnv()), newConfigCommand(newEnv()))
	return root
}
