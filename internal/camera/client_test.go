package camera

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"gavin/internal/guide"
	"gavin/internal/logging"
)

func TestClient_ScopedLifecycle(t *testing.T) {
	driver := NewMockDriver(testDevices()...)
	client := NewClient(driver, logging.Discard())

	if _, err := client.DeviceList(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized before Open, got %v", err)
	}

	if err := client.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	// 2回目のOpenは何もしない
	if err := client.Open(); err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if driver.Calls("Initialize") != 1 {
		t.Errorf("Initialize called %d times, want 1", driver.Calls("Initialize"))
	}

	devices, err := client.DeviceList()
	if err != nil {
		t.Fatalf("DeviceList failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if driver.Calls("Exit") != 1 {
		t.Errorf("Exit called %d times, want 1", driver.Calls("Exit"))
	}

	if err := client.Open(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("reopen after Close should fail, got %v", err)
	}
}

func TestClient_StreamState(t *testing.T) {
	driver := NewMockDriver(testDevices()...)
	client := NewClient(driver, logging.Discard())
	if err := client.Open(); err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.CloseStream(); !errors.Is(err, ErrStreamNotOpen) {
		t.Errorf("expected ErrStreamNotOpen, got %v", err)
	}

	info := guide.DeviceInfo{Width: 640, Height: 512}
	if err := client.OpenStreamByDevID(11, info, guide.Handlers{}); err != nil {
		t.Fatalf("OpenStreamByDevID failed: %v", err)
	}
	if !client.Streaming() {
		t.Error("expected streaming")
	}

	if err := client.CloseStream(); err != nil {
		t.Fatalf("CloseStream failed: %v", err)
	}
	if client.Streaming() {
		t.Error("expected not streaming")
	}

	if err := client.OpenStream(info, guide.Handlers{}); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	if driver.Calls("OpenStream") != 1 {
		t.Error("OpenStream not forwarded")
	}
}

func TestClient_DebugLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := NewClient(NewMockDriver(), logger)
	if err := client.Open(); err != nil {
		t.Fatal(err)
	}
	_ = client.Close()

	out := buf.String()
	for _, want := range []string{"Initialize: 1", "Exit: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q does not contain %q", out, want)
		}
	}
}

func TestClient_SetPaletteError(t *testing.T) {
	driver := NewMockDriver()
	driver.FailSetPalette(&guide.Error{Op: "SetPalette", Code: guide.CodePointsTooLarge})

	client := NewClient(driver, logging.Discard())
	if err := client.SetPalette(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	_ = client.Open()
	defer client.Close()

	// ストリームを開く前はSDKを呼ばない
	if err := client.SetPalette(1); !errors.Is(err, ErrStreamNotOpen) {
		t.Errorf("expected ErrStreamNotOpen, got %v", err)
	}
	if driver.Calls("SetPalette") != 0 {
		t.Errorf("SetPalette reached the driver %d times before OpenStream", driver.Calls("SetPalette"))
	}

	if err := client.OpenStreamByDevID(1, guide.DeviceInfo{Width: 4, Height: 4}, guide.Handlers{}); err != nil {
		t.Fatal(err)
	}
	err := client.SetPalette(99)
	var sdkErr *guide.Error
	if !errors.As(err, &sdkErr) || sdkErr.Op != "SetPalette" {
		t.Errorf("expected SDK error from SetPalette, got %v", err)
	}

	if err := client.CloseStream(); err != nil {
		t.Fatal(err)
	}
	if err := client.SetPalette(1); !errors.Is(err, ErrStreamNotOpen) {
		t.Errorf("expected ErrStreamNotOpen after CloseStream, got %v", err)
	}
	if driver.Calls("SetPalette") != 1 {
		t.Errorf("SetPalette reached the driver %d times, want 1", driver.Calls("SetPalette"))
	}
}
