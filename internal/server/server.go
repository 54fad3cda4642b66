package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/routers"
	"github.com/gin-gonic/gin"

	"gavin/internal/camera"
	"gavin/internal/config"
	"gavin/internal/metrics"
	"gavin/internal/mjpeg"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間
const shutdownTimeout = 5 * time.Second

// Camera はサーバーから参照するカメラの操作
type Camera interface {
	State() camera.State
	SetPalette(index int) error
}

// StatsSource はチャンネル毎の受信統計を返す
type StatsSource interface {
	Stats() map[string]camera.ChannelStats
}

// Options はサーバーの依存関係
type Options struct {
	Hub     *mjpeg.Hub
	Camera  Camera
	Stats   StatsSource      // 任意
	Metrics *metrics.Metrics // 任意。nilなら /metrics を登録しない
	Logger  *slog.Logger
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	hub        *mjpeg.Hub
	camera     Camera
	stats      StatsSource
	metrics    *metrics.Metrics
	logger     *slog.Logger
	engine     *gin.Engine
	apiRouter  routers.Router
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{
		config:    cfg,
		hub:       opts.Hub,
		camera:    opts.Camera,
		stats:     opts.Stats,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "server"),
		engine:    gin.New(),
		apiRouter: mustLoadOpenAPI(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// GinMode はロガーのレベルに合わせたginのモードを返す
// DEBUGが無効ならルート一覧などのデバッグ出力を抑える
func GinMode(logger *slog.Logger) string {
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// Handler はルーティング済みのハンドラーを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// MJPEGストリーム
	s.engine.GET("/", s.handleStream)
	s.engine.GET("/stream", s.handleStream)
	s.engine.GET("/index.html", s.handleIndex)
	s.engine.GET("/snapshot", s.handleSnapshot)

	// ヘルスチェック
	s.engine.GET("/health", s.handleHealth)

	// API
	api := s.engine.Group("/api", s.validateRequest())
	api.GET("/openapi.yaml", s.handleOpenAPI)
	api.GET("/status", s.handleStatus)
	api.GET("/devices", s.handleDevices)
	api.PUT("/palette", s.handlePalette)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// requestLogger はリクエストをDEBUGレベルで記録するミドルウェア
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTPリクエスト",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

// Start はサーバーを起動し、ctxがキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve は指定のリスナーで配信する
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// シャットダウン用のチャンネル
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTPサーバーを起動しています", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case err := <-errCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	// 配信中のストリームを先に終了させる
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
