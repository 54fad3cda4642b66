package camera

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"gavin/internal/guide"
	"gavin/internal/logging"
)

func TestSplitFrame_Channels(t *testing.T) {
	f := guide.Frame{
		Width:    2,
		Height:   1,
		RGB:      []byte{255, 0, 0, 0, 0, 255},
		Src:      []int16{100, 300},
		ParaLine: []int16{1, 2, 3}, // 長さ不一致
	}

	images, errs := SplitFrame(f)
	if len(images) != 2 {
		t.Fatalf("expected 2 channel images, got %d", len(images))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for the paraline channel, got %d", len(errs))
	}

	if images[0].Channel != ChannelRGB || images[1].Channel != ChannelSource {
		t.Errorf("unexpected channels: %s, %s", images[0].Channel, images[1].Channel)
	}

	rgb := images[0].Image
	if got := color.RGBAModel.Convert(rgb.At(0, 0)).(color.RGBA); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel (0,0) = %v", got)
	}
	if got := color.RGBAModel.Convert(rgb.At(1, 0)).(color.RGBA); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel (1,0) = %v", got)
	}

	gray := images[1].Image.(*image.Gray)
	if gray.GrayAt(0, 0).Y != 0 || gray.GrayAt(1, 0).Y != 255 {
		t.Errorf("16bit data not normalised: %v", gray.Pix)
	}
}

func TestSplitFrame_FlatData(t *testing.T) {
	images, errs := SplitFrame(guide.Frame{Width: 2, Height: 2, YUV: []int16{7, 7, 7, 7}})
	if len(errs) != 0 || len(images) != 1 {
		t.Fatalf("unexpected result: %d images, %v", len(images), errs)
	}
	if images[0].Channel != ChannelYUV {
		t.Errorf("channel = %s, want %s", images[0].Channel, ChannelYUV)
	}
}

func TestSplitFrame_Empty(t *testing.T) {
	images, errs := SplitFrame(guide.Frame{Width: 640, Height: 512})
	if len(images) != 0 || len(errs) != 0 {
		t.Errorf("empty frame should yield nothing, got %d images, %d errors", len(images), len(errs))
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	frames map[string]int
}

func (r *recordingObserver) ObserveFrame(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[channel]++
}

func (r *recordingObserver) ObserveStatus(guide.DeviceStatus) {}

func TestSplitter_HandleFrame(t *testing.T) {
	var (
		mu        sync.Mutex
		published []string
	)
	sink := ImageSinkFunc(func(channel string, _ image.Image) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, channel)
	})
	observer := &recordingObserver{frames: make(map[string]int)}

	splitter := NewSplitter(sink, observer, logging.Discard())
	frame := guide.Frame{Width: 1, Height: 1, RGB: []byte{1, 2, 3}, YUV: []int16{5}}

	splitter.HandleFrame(frame)
	splitter.HandleFrame(frame)

	if len(published) != 4 {
		t.Fatalf("expected 4 publishes, got %d", len(published))
	}

	stats := splitter.Stats()
	if stats[ChannelRGB].Frames != 2 || stats[ChannelYUV].Frames != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if observer.frames[ChannelRGB] != 2 {
		t.Errorf("observer saw %d RGB frames, want 2", observer.frames[ChannelRGB])
	}

	channels := splitter.Channels()
	if len(channels) != 2 || channels[0] != ChannelRGB || channels[1] != ChannelYUV {
		t.Errorf("unexpected channels: %v", channels)
	}
}

func TestSplitter_WithSimDriver(t *testing.T) {
	frames := make(chan string, 16)
	sink := ImageSinkFunc(func(channel string, img image.Image) {
		if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
			t.Errorf("unexpected bounds %v", img.Bounds())
		}
		select {
		case frames <- channel:
		default:
		}
	})

	driver := guide.NewSimDriver(guide.SimOptions{FPS: 100})
	_ = driver.Initialize()
	defer driver.Exit()

	splitter := NewSplitter(sink, nil, logging.Discard())
	info := guide.DeviceInfo{Width: 16, Height: 12, VideoMode: guide.ModeX16Param}
	if err := driver.OpenStreamByDevID(1, info, guide.Handlers{Frame: splitter.HandleFrame}); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for len(seen) < 3 {
		seen[<-frames] = true
	}
	if !seen[ChannelRGB] || !seen[ChannelSource] || !seen[ChannelParamLine] {
		t.Errorf("unexpected channel set: %v", seen)
	}
	if seen[ChannelYUV] {
		t.Error("X16_PARAM should not produce a YUV channel")
	}
}
