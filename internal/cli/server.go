package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gavin/internal/camera"
	"gavin/internal/config"
	"gavin/internal/metrics"
	"gavin/internal/mjpeg"
	"gavin/internal/mosaic"
	"gavin/internal/server"
)

// NewServerCommand は gavin-server コマンドを作成する
func NewServerCommand() *cobra.Command {
	return newServerCommand(newEnv(), runServer)
}

func newServerCommand(e *env, run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gavin-server",
		Short: "ストリームを開き、MJPEGで配信する",
		Long: `デバイスのストリームを開き、チャンネル毎の画像をMJPEG over HTTPで配信します。
割り込み (Ctrl+C) でストリームを閉じて終了します。

  http://<host>:<port>/?channel=<0-3>&quality=<1-100>&delay=<ミリ秒>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          e.command(run),
	}

	e.addCommonFlags(cmd)
	e.addDeviceFlags(cmd)
	e.addServerFlags(cmd)
	return cmd
}

// pipeline はカメラから配信までの構成要素
type pipeline struct {
	metrics  *metrics.Metrics
	hub      *mjpeg.Hub
	splitter *camera.Splitter
	session  *camera.Session
}

func newPipeline(e *env) (*pipeline, error) {
	driver, err := e.newDriver(e.cfg.DriverOptions())
	if err != nil {
		return nil, fmt.Errorf("ドライバーの作成に失敗: %w", err)
	}

	p := &pipeline{metrics: metrics.New()}
	p.hub = mjpeg.NewHub(e.cfg.HubOptions(), p.metrics, e.logger)
	p.splitter = camera.NewSplitter(p.hub, p.metrics, e.logger)
	p.session = camera.NewSession(driver, camera.SessionOptions{
		DeviceIndex: e.cfg.Device.ID,
		Info:        e.cfg.DeviceInfo(),
		Palette:     e.cfg.Device.Palette,
		Frame:       p.splitter.HandleFrame,
		Observer:    p.metrics,
	}, e.logger)
	return p, nil
}

// mosaicWatched は mosaic チャンネルを受信しているクライアントがいるかを返す
func (p *pipeline) mosaicWatched() bool {
	return p.hub.Clients()[mosaic.Channel] > 0
}

// runMosaic は mosaic チャンネルの生成を開始する
// demand がfalseの間は合成を省く（最初の1枚はチャンネル登録のため必ず配信する）
func (p *pipeline) runMosaic(ctx context.Context, e *env, demand func() bool) {
	if !e.cfg.Stream.Mosaic {
		return
	}
	interval := max(e.cfg.Stream.DefaultDelay, e.cfg.Stream.MinDelay, time.Millisecond)
	runner := mosaic.NewRunner(
		mosaic.NewComposer(e.cfg.Device.Width, e.cfg.Device.Height),
		p.hub, p.hub, p.splitter.Channels,
		interval,
		e.logger,
	)
	runner.SetDemand(demand)
	go runner.Run(ctx)
}

// runSession はセッションをバックグラウンドで実行し、終了時にcancelを呼ぶ
func (p *pipeline) runSession(ctx context.Context, cancel context.CancelFunc) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer cancel()
		errCh <- p.session.Run(ctx)
	}()
	return errCh
}

func runServer(ctx context.Context, e *env) error {
	p, err := newPipeline(e)
	if err != nil {
		return err
	}

	gin.SetMode(server.GinMode(e.logger))
	srv := server.New(e.cfg, server.Options{
		Hub:     p.hub,
		Camera:  p.session,
		Stats:   p.splitter,
		Metrics: p.metrics,
		Logger:  e.logger,
	})
	watchPalette(e.v, p.session, e.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionErr := p.runSession(ctx, cancel)
	p.runMosaic(ctx, e, p.mosaicWatched)
	srvErr := srv.Start(ctx)
	cancel()

	return errors.Join(<-sessionErr, srvErr)
}

// watchPalette は設定ファイルの device.palette の変更をストリームに反映する
func watchPalette(v *viper.Viper, session *camera.Session, logger *slog.Logger) {
	config.Watch(v, func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warn("設定の再読み込みに失敗", "error", err)
			return
		}
		palette := cfg.Device.Palette
		if palette < 0 || palette == session.State().Palette {
			return
		}
		if err := session.SetPalette(palette); err != nil {
			logger.Warn("パレットの変更に失敗", "palette", palette, "error", err)
			return
		}
		logger.Info("設定ファイルからパレットを変更しました", "palette", palette)
	})
}
