package guide

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// SimPalettes はシミュレーションドライバーが持つパレット数
const SimPalettes = 4

// SimOptions はシミュレーションドライバーの設定
type SimOptions struct {
	FPS     int // フレームレート（0なら25）
	Devices int // デバイス数（0なら1）
}

// SimDriver は実機なしで動作するDriver実装
//
// 温度分布を模した16bitデータを生成し、ビデオモードに応じてチャンネルを埋める。
type SimDriver struct {
	opts SimOptions

	mu          sync.Mutex
	initialized bool
	streaming   bool
	palette     int
	stopCh      chan struct{}
	wg          sync.WaitGroup

	// 呼び出し回数（テスト用）
	calls map[string]int
}

// NewSimDriver は新しいSimDriverを作成する
func NewSimDriver(opts SimOptions) *SimDriver {
	if opts.FPS <= 0 {
		opts.FPS = 25
	}
	if opts.Devices <= 0 {
		opts.Devices = 1
	}
	if opts.Devices > MaxDevices {
		opts.Devices = MaxDevices
	}
	return &SimDriver{opts: opts, calls: make(map[string]int)}
}

// Calls は指定したSDK関数の呼び出し回数を返す
func (d *SimDriver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Streaming はストリーム中かどうかを返す
func (d *SimDriver) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Palette は現在のパレット番号を返す
func (d *SimDriver) Palette() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.palette
}

func (d *SimDriver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["Initialize"]++
	d.initialized = true
	return nil
}

func (d *SimDriver) Exit() error {
	d.mu.Lock()
	d.calls["Exit"]++
	d.initialized = false
	d.mu.Unlock()

	// SDKのExitはストリームも止める
	d.stop()
	return nil
}

func (d *SimDriver) GetDeviceList() ([]Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["GetDeviceList"]++

	if !d.initialized {
		return nil, check("GetDeviceList", int32(CodeUnknown))
	}

	devices := make([]Device, d.opts.Devices)
	for i := range devices {
		devices[i] = Device{ID: int32(i + 1), Name: fmt.Sprintf("Guide SIM %d", i+1)}
	}
	return devices, nil
}

func (d *SimDriver) OpenStream(info DeviceInfo, handlers Handlers) error {
	return d.open("OpenStream", 1, info, handlers)
}

func (d *SimDriver) OpenStreamByDevID(devID int32, info DeviceInfo, handlers Handlers) error {
	return d.open("OpenStreamByDevID", devID, info, handlers)
}

func (d *SimDriver) open(op string, devID int32, info DeviceInfo, handlers Handlers) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++

	switch {
	case !d.initialized:
		return check(op, int32(CodeUnknown))
	case d.streaming:
		return fmt.Errorf("%s: %w", op, ErrStreamOpen)
	case devID < 1 || int(devID) > d.opts.Devices:
		return check(op, int32(CodeDeviceNotFound))
	case info.Width <= 0 || info.Height <= 0 || info.Width > 4096 || info.Height > 4096:
		return check(op, int32(CodeResolution))
	case !info.VideoMode.Valid():
		return check(op, int32(CodeUnknown))
	}

	d.streaming = true
	d.stopCh = make(chan struct{})
	d.wg.Add(1)
	go d.run(info, handlers, d.stopCh)
	return nil
}

func (d *SimDriver) CloseStream() error {
	d.mu.Lock()
	d.calls["CloseStream"]++
	d.mu.Unlock()

	d.stop()
	return nil
}

func (d *SimDriver) SetPalette(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["SetPalette"]++

	switch {
	case index < 0:
		return check("SetPalette", int32(CodePointsTooSmall))
	case index >= SimPalettes:
		return check("SetPalette", int32(CodePointsTooLarge))
	}
	d.palette = index
	return nil
}

// stop は生成ゴルーチンを停止して終了を待つ
func (d *SimDriver) stop() {
	d.mu.Lock()
	if !d.streaming {
		d.mu.Unlock()
		return
	}
	d.streaming = false
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
}

// run はフレームを一定間隔で生成する
func (d *SimDriver) run(info DeviceInfo, handlers Handlers, stopCh <-chan struct{}) {
	defer d.wg.Done()

	handlers.status(StatusConnected)
	defer handlers.status(StatusDisconnected)

	ticker := time.NewTicker(time.Second / time.Duration(d.opts.FPS))
	defer ticker.Stop()

	var seq int
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			handlers.frame(d.synthesize(info, seq))
			seq++
		}
	}
}

// synthesize は背景の勾配と移動する熱源からフレームを作る
func (d *SimDriver) synthesize(info DeviceInfo, seq int) Frame {
	w, h := int(info.Width), int(info.Height)
	n := w * h

	d.mu.Lock()
	palette := d.palette
	d.mu.Unlock()

	raw := make([]int16, n)
	phase := float64(seq) / 25
	cx := float64(w) * (0.5 + 0.35*math.Cos(phase))
	cy := float64(h) * (0.5 + 0.35*math.Sin(phase))
	sigma := float64(min(w, h)) / 6
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			spot := math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
			raw[y*w+x] = int16(8000 + 400*float64(y)/float64(h) + 3000*spot)
		}
	}

	f := Frame{Width: w, Height: h, RGB: make([]byte, n*3)}
	lo, hi := int16(8000), int16(11400)
	for i, v := range raw {
		r, g, b := simColor(palette, float64(v-lo)/float64(hi-lo))
		f.RGB[i*3], f.RGB[i*3+1], f.RGB[i*3+2] = r, g, b
	}

	if info.VideoMode.HasSource() {
		f.Src = raw
	}
	if info.VideoMode.HasYUV() {
		f.YUV = make([]int16, n)
		for i := range f.YUV {
			r, g, b := float64(f.RGB[i*3]), float64(f.RGB[i*3+1]), float64(f.RGB[i*3+2])
			f.YUV[i] = int16(0.299*r + 0.587*g + 0.114*b)
		}
	}
	if info.VideoMode.HasParamLine() {
		// 先頭にシーケンス番号・パレット・モードを入れる（入る分だけ）
		f.ParaLine = make([]int16, n)
		copy(f.ParaLine, []int16{int16(seq), int16(palette), int16(info.VideoMode)})
	}
	return f
}

// simColor は0..1の値をパレットの色に変換する
func simColor(palette int, t float64) (uint8, uint8, uint8) {
	t = math.Max(0, math.Min(1, t))
	switch palette {
	case 1: // ブラックホット
		v := uint8(255 * (1 - t))
		return v, v, v
	case 2: // アイアン
		return uint8(255 * math.Min(1, t*1.5)), uint8(255 * math.Max(0, t*2-1)), uint8(255 * math.Max(0, math.Sin(t*math.Pi)*0.8-t*0.3))
	case 3: // レインボー
		return uint8(255 * math.Max(0, math.Min(1, 1.5-math.Abs(4*t-3)))),
			uint8(255 * math.Max(0, math.Min(1, 1.5-math.Abs(4*t-2)))),
			uint8(255 * math.Max(0, math.Min(1, 1.5-math.Abs(4*t-1))))
	default: // ホワイトホット
		v := uint8(255 * t)
		return v, v, v
	}
}
