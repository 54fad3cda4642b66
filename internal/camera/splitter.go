package camera

import (
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gavin/internal/guide"
)

// ChannelImage はチャンネル名と画像の組
type ChannelImage struct {
	Channel string
	Image   image.Image
}

// SplitFrame はフレームをチャンネル毎の画像へ分割する
// データ長がフレームサイズと一致しないチャンネルはエラーとして返し、他のチャンネルは処理を続ける
func SplitFrame(f guide.Frame) ([]ChannelImage, []error) {
	var (
		images []ChannelImage
		errs   []error
	)

	if len(f.RGB) > 0 {
		img, err := rgbImage(f.Width, f.Height, f.RGB)
		if err != nil {
			errs = append(errs, fmt.Errorf("チャンネル %s: %w", ChannelRGB, err))
		} else {
			images = append(images, ChannelImage{Channel: ChannelRGB, Image: img})
		}
	}

	gray := []struct {
		channel string
		data    []int16
	}{
		{ChannelSource, f.Src},
		{ChannelYUV, f.YUV},
		{ChannelParamLine, f.ParaLine},
	}
	for _, g := range gray {
		if len(g.data) == 0 {
			continue
		}
		img, err := grayImage(f.Width, f.Height, g.data)
		if err != nil {
			errs = append(errs, fmt.Errorf("チャンネル %s: %w", g.channel, err))
			continue
		}
		images = append(images, ChannelImage{Channel: g.channel, Image: img})
	}

	return images, errs
}

// rgbImage はRGB24のバッファから画像を作る
func rgbImage(w, h int, data []byte) (*image.RGBA, error) {
	if w <= 0 || h <= 0 || len(data) != w*h*3 {
		return nil, fmt.Errorf("RGBデータ長 %d が %dx%d と一致しません", len(data), w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
		img.Pix[j] = data[i]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// grayImage は16bitデータを最小値・最大値で正規化した8bitグレースケール画像にする
func grayImage(w, h int, data []int16) (*image.Gray, error) {
	if w <= 0 || h <= 0 || len(data) != w*h {
		return nil, fmt.Errorf("16bitデータ長 %d が %dx%d と一致しません", len(data), w, h)
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	span := int32(hi) - int32(lo)
	if span == 0 {
		return img, nil
	}
	for i, v := range data {
		img.Pix[i] = uint8((int32(v) - int32(lo)) * 255 / span)
	}
	return img, nil
}

// Splitter はフレームを分割してImageSinkへ渡すFrameHandler
type Splitter struct {
	sink     ImageSink
	observer FrameObserver
	logger   *slog.Logger

	mu    sync.RWMutex
	stats map[string]*ChannelStats
}

// NewSplitter は新しいSplitterを作成する
// observerはnilでもよい
func NewSplitter(sink ImageSink, observer FrameObserver, logger *slog.Logger) *Splitter {
	return &Splitter{
		sink:     sink,
		observer: observer,
		logger:   logger.With("component", "splitter"),
		stats:    make(map[string]*ChannelStats),
	}
}

// HandleFrame はguide.FrameHandlerとして使う
func (s *Splitter) HandleFrame(f guide.Frame) {
	images, errs := SplitFrame(f)
	for _, err := range errs {
		s.logger.Debug("チャンネルをスキップ", "error", err)
	}

	now := time.Now()
	for _, ci := range images {
		s.record(ci.Channel, now)
		if s.observer != nil {
			s.observer.ObserveFrame(ci.Channel)
		}
		s.sink.Publish(ci.Channel, ci.Image)
	}
}

// record はチャンネルの統計を更新する
func (s *Splitter) record(channel string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[channel]
	if !ok {
		st = &ChannelStats{}
		s.stats[channel] = st
	}
	if !st.LastFrame.IsZero() {
		if dt := now.Sub(st.LastFrame).Seconds(); dt > 0 {
			fps := 1 / dt
			if st.FPS == 0 {
				st.FPS = fps
			} else {
				// 指数移動平均
				st.FPS = st.FPS*0.9 + fps*0.1
			}
		}
	}
	st.Frames++
	st.LastFrame = now
}

// Stats はチャンネル毎の統計のコピーを返す
func (s *Splitter) Stats() map[string]ChannelStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ChannelStats, len(s.stats))
	for ch, st := range s.stats {
		out[ch] = *st
	}
	return out
}

// Channels は受信したことのあるチャンネル名をソートして返す
func (s *Splitter) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]string, 0, len(s.stats))
	for ch := range s.stats {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}
