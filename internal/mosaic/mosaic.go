// Package mosaic は全チャンネルの最新画像を1枚に並べた画像を生成する
package mosaic

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"gavin/internal/camera"
)

// Channel はモザイク画像を配信するチャンネル名
const Channel = "mosaic"

// Source はチャンネル毎の最新画像を返す
type Source interface {
	Latest(channel string) (image.Image, bool)
}

// Layout はグリッドの配置
type Layout struct {
	Cols       int
	Rows       int
	CellWidth  int
	CellHeight int
}

// Position はセルの位置
type Position struct {
	X, Y          int
	Width, Height int
}

// Composer は複数の画像をグリッドに並べる
type Composer struct {
	width  int
	height int
}

// NewComposer は出力サイズを指定してComposerを作成する
func NewComposer(width, height int) *Composer {
	return &Composer{width: width, height: height}
}

// CalculateLayout は画像数に基づいてレイアウトを計算する
func (c *Composer) CalculateLayout(count int) Layout {
	var cols, rows int

	switch count {
	case 0, 1:
		cols, rows = 1, 1
	case 2:
		cols, rows = 2, 1
	case 3, 4:
		cols, rows = 2, 2 // 3つの場合は1つ空き
	default:
		cols = int(float64(count)*0.6) + 1 // 横を多めに
		rows = (count + cols - 1) / cols
	}

	return Layout{
		Cols:       cols,
		Rows:       rows,
		CellWidth:  c.width / cols,
		CellHeight: c.height / rows,
	}
}

// Position は指定したインデックスのセル位置を返す
func (l Layout) Position(index int) Position {
	row := index / l.Cols
	col := index % l.Cols

	return Position{
		X:      col * l.CellWidth,
		Y:      row * l.CellHeight,
		Width:  l.CellWidth,
		Height: l.CellHeight,
	}
}

// Compose は画像を順にグリッドへ配置する
// 各画像は縦横比を保ってセルの中央に置く
func (c *Composer) Compose(images []image.Image) *image.NRGBA {
	dst := imaging.New(c.width, c.height, color.Black)
	if len(images) == 0 {
		return dst
	}

	layout := c.CalculateLayout(len(images))
	for i, img := range images {
		pos := layout.Position(i)
		if pos.Width <= 0 || pos.Height <= 0 {
			continue
		}
		fitted := imaging.Fit(img, pos.Width, pos.Height, imaging.Box)
		offset := image.Pt(
			pos.X+(pos.Width-fitted.Bounds().Dx())/2,
			pos.Y+(pos.Height-fitted.Bounds().Dy())/2,
		)
		dst = imaging.Paste(dst, fitted, offset)
	}
	return dst
}

// Runner は一定間隔でモザイク画像を生成して配信する
type Runner struct {
	composer *Composer
	source   Source
	sink     camera.ImageSink
	channels func() []string
	interval time.Duration
	logger   *slog.Logger

	demand    func() bool
	published bool
}

// NewRunner は新しいRunnerを作成する
// channels は合成するチャンネルの一覧を返す（表示順）
func NewRunner(composer *Composer, source Source, sink camera.ImageSink, channels func() []string, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		composer: composer,
		source:   source,
		sink:     sink,
		channels: channels,
		interval: interval,
		logger:   logger.With("component", "mosaic"),
	}
}

// SetDemand は合成が必要かを返す関数を設定する
// 一度配信した後は fn がfalseを返す間は合成しない。nilなら毎回合成する
func (r *Runner) SetDemand(fn func() bool) {
	r.demand = fn
}

// Run はctxがキャンセルされるまで合成と配信を繰り返す
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("モザイク生成を開始", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick は1回分の合成と配信を行う
// 画像が1枚もない場合と、配信済みで誰も見ていない場合は何もしない
func (r *Runner) Tick() bool {
	if r.published && r.demand != nil && !r.demand() {
		return false
	}

	var images []image.Image
	for _, ch := range r.channels() {
		if ch == Channel {
			continue
		}
		if img, ok := r.source.Latest(ch); ok {
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		return false
	}

	r.sink.Publish(Channel, r.composer.Compose(images))
	r.published = true
	return true
}
