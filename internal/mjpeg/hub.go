// Package mjpeg はMotion JPEG over HTTPの配信ハブを提供する
//
// # 仕様
//   - チャンネル毎にクライアント（Subscriber）を管理する
//   - クライアントは JPEG 品質（上限 MaxQuality）と送信間隔（下限 MinDelay）を指定できる
//   - 1チャンネルへの配信は MinDelay 以上の間隔をあける
//   - フレームは送信対象のクライアントがいる場合のみ、対象の最大品質で1回だけエンコードする
//   - クライアントへの送信はブロックせず、未読のフレームは新しいフレームで置き換える
package mjpeg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrHubClosed はハブが閉じられた後の購読を表す
var ErrHubClosed = errors.New("MJPEGハブは閉じられています")

// Options はハブの設定
type Options struct {
	DefaultChannel string        // チャンネル未指定時のチャンネル
	MinDelay       time.Duration // フレーム間隔の下限
	DefaultDelay   time.Duration // クライアントのデフォルト間隔
	MaxQuality     int           // JPEG品質の上限
	DefaultQuality int           // クライアントのデフォルト品質
}

// Observer は配信状況を観測する（メトリクス用）
type Observer interface {
	ObserveSent(channel string, bytes int)
	ClientConnected(channel string)
	ClientDisconnected(channel string)
}

// Subscriber は1クライアントの購読
type Subscriber struct {
	ID      string
	Channel string
	Quality int
	Delay   time.Duration

	hub      *Hub
	frames   chan []byte
	lastSent time.Time
	closed   bool
}

// Frames はエンコード済みJPEGを受け取るチャンネルを返す
// 購読が終了するとクローズされる
func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

// Close は購読を終了する
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// Hub はチャンネル毎のMJPEG配信を管理する
type Hub struct {
	opts     Options
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	closed    bool
	lastTimes map[string]time.Time
	latest    map[string]image.Image
	subs      map[string]*Subscriber
}

// NewHub は新しいHubを作成する
// observerはnilでもよい
func NewHub(opts Options, observer Observer, logger *slog.Logger) *Hub {
	if opts.MaxQuality <= 0 || opts.MaxQuality > 100 {
		opts.MaxQuality = 95
	}
	if opts.DefaultQuality <= 0 {
		opts.DefaultQuality = 80
	}

	return &Hub{
		opts:      opts,
		observer:  observer,
		logger:    logger.With("component", "mjpeg"),
		now:       time.Now,
		lastTimes: make(map[string]time.Time),
		latest:    make(map[string]image.Image),
		subs:      make(map[string]*Subscriber),
	}
}

// Options はハブの設定を返す
func (h *Hub) Options() Options {
	return h.opts
}

// Subscribe はチャンネルを購読する
//
// quality が0以下ならデフォルト品質、delay が負ならデフォルト間隔を使う。
// quality は MaxQuality、delay は MinDelay で制限される。
func (h *Hub) Subscribe(channel string, quality int, delay time.Duration) (*Subscriber, error) {
	if channel == "" {
		channel = h.opts.DefaultChannel
	}
	if quality <= 0 {
		quality = h.opts.DefaultQuality
	}
	quality = min(quality, h.opts.MaxQuality)
	if delay < 0 {
		delay = h.opts.DefaultDelay
	}
	delay = max(delay, h.opts.MinDelay)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	s := &Subscriber{
		ID:      uuid.NewString(),
		Channel: channel,
		Quality: quality,
		Delay:   delay,
		hub:     h,
		frames:  make(chan []byte, 1),
	}
	h.subs[s.ID] = s

	if h.observer != nil {
		h.observer.ClientConnected(channel)
	}
	h.logger.Debug("新しいMJPEG接続", "client", s.ID, "channel", channel, "quality", quality, "delay", delay)
	return s, nil
}

func (h *Hub) unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

// removeLocked は購読を削除する（ロック済み前提）
func (h *Hub) removeLocked(s *Subscriber) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
	delete(h.subs, s.ID)

	if h.observer != nil {
		h.observer.ClientDisconnected(s.Channel)
	}
	h.logger.Debug("MJPEG接続を終了", "client", s.ID, "channel", s.Channel)
}

// Publish はチャンネルへ画像を配信する
func (h *Hub) Publish(channel string, img image.Image) {
	now := h.now()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}

	h.latest[channel] = img
	last, seen := h.lastTimes[channel]
	if !seen {
		h.lastTimes[channel] = time.Time{}
	}
	if seen && !last.IsZero() && now.Sub(last) < h.opts.MinDelay {
		h.mu.Unlock()
		return
	}

	var (
		receivers []*Subscriber
		quality   int
	)
	for _, s := range h.subs {
		if s.Channel == channel && now.Sub(s.lastSent) >= s.Delay {
			receivers = append(receivers, s)
			quality = max(quality, s.Quality)
		}
	}
	if len(receivers) == 0 {
		h.mu.Unlock()
		return
	}
	h.lastTimes[channel] = now
	h.mu.Unlock()

	data, err := Encode(img, quality)
	if err != nil {
		h.logger.Error("JPEGエンコードに失敗", "channel", channel, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range receivers {
		if s.closed {
			continue
		}
		deliver(s.frames, data)
		s.lastSent = now
		if h.observer != nil {
			h.observer.ObserveSent(channel, len(data))
		}
	}
}

// deliver はブロックせずに送信し、未読のフレームがあれば置き換える
func deliver(ch chan []byte, data []byte) {
	select {
	case ch <- data:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- data:
	default:
	}
}

// Channels は配信されたことのあるチャンネル名をソートして返す
func (h *Hub) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	channels := make([]string, 0, len(h.lastTimes))
	for ch := range h.lastTimes {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// Clients はチャンネル毎のクライアント数を返す
func (h *Hub) Clients() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make(map[string]int)
	for _, s := range h.subs {
		clients[s.Channel]++
	}
	return clients
}

// Latest はチャンネルの最新画像を返す
func (h *Hub) Latest(channel string) (image.Image, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	img, ok := h.latest[channel]
	return img, ok
}

// Snapshot はチャンネルの最新画像をJPEGで返す
// quality が0以下ならデフォルト品質を使う
func (h *Hub) Snapshot(channel string, quality int) ([]byte, bool, error) {
	if channel == "" {
		channel = h.opts.DefaultChannel
	}
	if quality <= 0 {
		quality = h.opts.DefaultQuality
	}
	quality = min(quality, h.opts.MaxQuality)

	img, ok := h.Latest(channel)
	if !ok {
		return nil, false, nil
	}
	data, err := Encode(img, quality)
	if err != nil {
		return nil, true, err
	}
	return data, true, nil
}

// Close は全ての購読を終了し、以降の配信を無視する
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, s := range h.subs {
		h.removeLocked(s)
	}
}

// Encode は画像をJPEGにエンコードする
func Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
