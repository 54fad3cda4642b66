package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gavin/internal/guide"
)

// SessionOptions はセッションの設定
type SessionOptions struct {
	DeviceIndex int              // 列挙された一覧のインデックス
	Info        guide.DeviceInfo // 要求する幅・高さ・ビデオモード
	Palette     int              // オープン後に設定するパレット（負なら設定しない）

	// Frame はフレーム受信時に呼ばれる
	Frame guide.FrameHandler

	// Observer は接続状態の変化を受け取る（任意）
	Observer FrameObserver
}

// Session はデバイスの列挙からストリームのクローズまでを管理する
type Session struct {
	client *Client
	opts   SessionOptions
	logger *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewSession は新しいSessionを作成する
func NewSession(driver guide.Driver, opts SessionOptions, logger *slog.Logger) *Session {
	return &Session{
		client: NewClient(driver, logger),
		opts:   opts,
		logger: logger.With("component", "session"),
		state: State{
			Status:  StatusInactive,
			Info:    opts.Info,
			Palette: opts.Palette,
		},
	}
}

// Run はストリームを開き、ctxがキャンセルされるまで待機してから閉じる
//
// ctxのキャンセルは正常な終了として扱い、nilを返す。
// ストリームのオープンに失敗した場合は待機せずにエラーを返す。
// どの経路でもクライアントは1回だけ解放される。
func (s *Session) Run(ctx context.Context) (err error) {
	if err := s.client.Open(); err != nil {
		s.setStatus(StatusError)
		return fmt.Errorf("カメラの初期化に失敗: %w", err)
	}
	defer func() {
		if cerr := s.client.Close(); cerr != nil {
			s.logger.Error("カメラの終了に失敗", "error", cerr)
			if err == nil {
				err = fmt.Errorf("カメラの終了に失敗: %w", cerr)
			}
		}
	}()

	devices, err := s.client.DeviceList()
	if err != nil {
		s.setStatus(StatusError)
		return fmt.Errorf("デバイス一覧の取得に失敗: %w", err)
	}
	s.mu.Lock()
	s.state.Devices = devices
	s.mu.Unlock()

	for i, dev := range devices {
		s.logger.Debug("デバイスを検出", "index", i, "id", dev.ID, "name", dev.Name)
	}

	idx := s.opts.DeviceIndex
	if idx < 0 || idx >= len(devices) {
		s.setStatus(StatusError)
		return fmt.Errorf("%w: %d (デバイス数: %d)", ErrDeviceIndex, idx, len(devices))
	}
	dev := devices[idx]

	handlers := guide.Handlers{
		Frame:  s.opts.Frame,
		Status: s.handleStatus,
	}
	if err := s.client.OpenStreamByDevID(dev.ID, s.opts.Info, handlers); err != nil {
		s.setStatus(StatusError)
		s.logger.Error("ストリームのオープンに失敗", "id", dev.ID, "error", err)
		return fmt.Errorf("ストリームのオープンに失敗: %w", err)
	}

	s.mu.Lock()
	s.state.Device = &dev
	s.state.Status = StatusActive
	s.state.StartedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("ストリームを開きました",
		"id", dev.ID,
		"name", dev.Name,
		"width", s.opts.Info.Width,
		"height", s.opts.Info.Height,
		"mode", s.opts.Info.VideoMode.String(),
	)

	if s.opts.Palette >= 0 {
		if err := s.SetPalette(s.opts.Palette); err != nil {
			s.logger.Warn("パレットの設定に失敗", "palette", s.opts.Palette, "error", err)
		}
	}

	// 割り込みまで待機
	<-ctx.Done()
	s.logger.Info("割り込みを受信しました。ストリームを閉じます")

	s.setStatus(StatusInactive)
	if err := s.client.CloseStream(); err != nil {
		return fmt.Errorf("ストリームのクローズに失敗: %w", err)
	}
	return nil
}

// SetPalette は開いているストリームのパレットを変更する
// 開く前や閉じた後は ErrStreamNotOpen を返す
func (s *Session) SetPalette(index int) error {
	if err := s.client.SetPalette(index); err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return ErrStreamNotOpen
		}
		return err
	}

	s.mu.Lock()
	s.state.Palette = index
	s.mu.Unlock()
	return nil
}

// State は現在の状態のコピーを返す
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	st.Devices = append([]guide.Device(nil), s.state.Devices...)
	if s.state.Device != nil {
		dev := *s.state.Device
		st.Device = &dev
	}
	return st
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.state.Status = status
	s.mu.Unlock()
}

// handleStatus はSDKの接続状態コールバック
func (s *Session) handleStatus(status guide.DeviceStatus) {
	s.logger.Debug("接続状態", "status", status.String())

	s.mu.Lock()
	s.state.Connected = status == guide.StatusConnected
	s.mu.Unlock()

	if s.opts.Observer != nil {
		s.opts.Observer.ObserveStatus(status)
	}
}
