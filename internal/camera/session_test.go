package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"gavin/internal/guide"
	"gavin/internal/logging"
)

func testDevices() []guide.Device {
	return []guide.Device{
		{ID: 11, Name: "Guide A"},
		{ID: 42, Name: "Guide B"},
	}
}

func TestSession_OpenFailureSkipsWaitAndClose(t *testing.T) {
	driver := NewMockDriver(testDevices()...)
	driver.FailOpen(&guide.Error{Op: "OpenStreamByDevID", Code: guide.CodeResolution})

	session := NewSession(driver, SessionOptions{
		Info:    guide.DeviceInfo{Width: 640, Height: 512},
		Palette: -1,
	}, logging.Discard())

	// キャンセルされないコンテキストでもすぐに戻ること
	done := make(chan error, 1)
	go func() { done <- session.Run(context.Background()) }()

	select {
	case err := <-done:
		if !guide.IsCode(err, guide.CodeResolution) {
			t.Errorf("expected ERROR_RESOLUTION, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked after a failed open")
	}

	if n := driver.Calls("CloseStream"); n != 0 {
		t.Errorf("CloseStream called %d times, want 0", n)
	}
	if n := driver.Calls("Exit"); n != 1 {
		t.Errorf("Exit called %d times, want 1", n)
	}
	if session.State().Status != StatusError {
		t.Errorf("expected error status, got %s", session.State().Status)
	}
}

func TestSession_InterruptClosesStreamOnce(t *testing.T) {
	driver := NewMockDriver(testDevices()...)

	session := NewSession(driver, SessionOptions{
		DeviceIndex: 1,
		Info:        guide.DeviceInfo{Width: 640, Height: 512, VideoMode: guide.ModeY16},
		Palette:     -1,
	}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	// ストリームが開かれるまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for session.State().Status != StatusActive {
		if time.Now().After(deadline) {
			t.Fatal("stream never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("interrupt should not be an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after interrupt")
	}

	if n := driver.Calls("CloseStream"); n != 1 {
		t.Errorf("CloseStream called %d times, want 1", n)
	}
	if n := driver.Calls("Exit"); n != 1 {
		t.Errorf("Exit called %d times, want 1", n)
	}
	if driver.LastDevID != 42 {
		t.Errorf("opened device id %d, want 42 (index 1)", driver.LastDevID)
	}
	if driver.LastInfo.Width != 640 || driver.LastInfo.Height != 512 || driver.LastInfo.VideoMode != guide.ModeY16 {
		t.Errorf("unexpected device info: %+v", driver.LastInfo)
	}
	if driver.Calls("SetPalette") != 0 {
		t.Error("SetPalette should not be called when palette < 0")
	}
}

func TestSession_DeviceIndexOutOfRange(t *testing.T) {
	driver := NewMockDriver(testDevices()...)

	session := NewSession(driver, SessionOptions{
		DeviceIndex: 2,
		Info:        guide.DeviceInfo{Width: 640, Height: 512},
		Palette:     -1,
	}, logging.Discard())

	err := session.Run(context.Background())
	if !errors.Is(err, ErrDeviceIndex) {
		t.Fatalf("expected ErrDeviceIndex, got %v", err)
	}
	if driver.Calls("OpenStreamByDevID") != 0 {
		t.Error("stream must not be opened for an invalid index")
	}
	if driver.Calls("Exit") != 1 {
		t.Error("client must be released for an invalid index")
	}
}

func TestSession_InitializeFailure(t *testing.T) {
	driver := NewMockDriver(testDevices()...)
	driver.FailInitialize(&guide.Error{Op: "Initialize", Code: guide.CodeUnknown})

	session := NewSession(driver, SessionOptions{Palette: -1}, logging.Discard())
	if err := session.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if driver.Calls("GetDeviceList") != 0 {
		t.Error("GetDeviceList must not be called when Initialize fails")
	}
	if driver.Calls("Exit") != 0 {
		t.Error("Exit must not be called when Initialize fails")
	}
}

func TestSession_PaletteAndFrames(t *testing.T) {
	driver := NewMockDriver(testDevices()...)

	frames := make(chan guide.Frame, 1)
	session := NewSession(driver, SessionOptions{
		Info:    guide.DeviceInfo{Width: 2, Height: 2},
		Palette: 3,
		Frame:   func(f guide.Frame) { frames <- f },
	}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for driver.Calls("SetPalette") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("palette was never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	driver.Emit(guide.Frame{Width: 2, Height: 2})
	select {
	case <-frames:
	case <-time.After(time.Second):
		t.Fatal("frame handler not wired")
	}

	if err := session.SetPalette(1); err != nil {
		t.Fatalf("SetPalette failed: %v", err)
	}
	if session.State().Palette != 1 {
		t.Errorf("palette = %d, want 1", session.State().Palette)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if err := session.SetPalette(2); !errors.Is(err, ErrStreamNotOpen) {
		t.Errorf("expected ErrStreamNotOpen after close, got %v", err)
	}
}

func TestSession_StatusCallback(t *testing.T) {
	driver := NewMockDriver(testDevices()...)
	session := NewSession(driver, SessionOptions{Palette: -1, Info: guide.DeviceInfo{Width: 1, Height: 1}}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for session.State().Status != StatusActive {
		if time.Now().After(deadline) {
			t.Fatal("stream never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	driver.LastHandlers.Status(guide.StatusConnected)
	if !session.State().Connected {
		t.Error("expected connected state")
	}
	driver.LastHandlers.Status(guide.StatusDisconnected)
	if session.State().Connected {
		t.Error("expected disconnected state")
	}

	cancel()
	<-done
}

func TestSession_SetPaletteBeforeRun(t *testing.T) {
	driver := NewMockDriver(testDevices()...)
	session := NewSession(driver, SessionOptions{Palette: -1}, logging.Discard())

	if err := session.SetPalette(1); !errors.Is(err, ErrStreamNotOpen) {
		t.Errorf("expected ErrStreamNotOpen before Run, got %v", err)
	}
	if driver.Calls("SetPalette") != 0 {
		t.Error("SetPalette should not reach the driver before the stream is open")
	}
}
