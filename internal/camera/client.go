package camera

import (
	"fmt"
	"log/slog"
	"sync"

	"gavin/internal/guide"
)

// Client はSDKドライバーのラッパー
//
// Open で初期化し、必ず Close で解放する：
//
//	c := camera.NewClient(driver, logger)
//	if err := c.Open(); err != nil { ... }
//	defer c.Close()
type Client struct {
	driver guide.Driver
	logger *slog.Logger

	mu        sync.Mutex
	open      bool
	closed    bool
	streaming bool
}

// NewClient は新しいClientを作成する
func NewClient(driver guide.Driver, logger *slog.Logger) *Client {
	return &Client{
		driver: driver,
		logger: logger.With("component", "client"),
	}
}

// Open はモジュールを初期化する
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return nil // 既に初期化済み
	}
	if c.closed {
		return fmt.Errorf("クライアントは既に閉じられています: %w", ErrNotInitialized)
	}

	if err := c.call("Initialize", c.driver.Initialize); err != nil {
		return err
	}
	c.open = true
	return nil
}

// Close はモジュールを終了する
// 何度呼んでもSDKの Exit は1回しか呼ばれない
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil // 初期化されていない、または既に終了済み
	}

	c.open = false
	c.closed = true
	c.streaming = false
	return c.call("Exit", c.driver.Exit)
}

// DeviceList はUSBデバイス一覧を取得する
func (c *Client) DeviceList() ([]guide.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrNotInitialized
	}

	var devices []guide.Device
	err := c.call("GetDeviceList", func() error {
		var err error
		devices, err = c.driver.GetDeviceList()
		return err
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// OpenStream は最初のデバイスでストリームを開く
func (c *Client) OpenStream(info guide.DeviceInfo, handlers guide.Handlers) error {
	return c.openStream("OpenStream", func() error {
		return c.driver.OpenStream(info, handlers)
	})
}

// OpenStreamByDevID は指定デバイスIDでストリームを開く
func (c *Client) OpenStreamByDevID(devID int32, info guide.DeviceInfo, handlers guide.Handlers) error {
	return c.openStream("OpenStreamByDevID", func() error {
		return c.driver.OpenStreamByDevID(devID, info, handlers)
	})
}

func (c *Client) openStream(op string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotInitialized
	}
	if err := c.call(op, fn); err != nil {
		return err
	}
	c.streaming = true
	return nil
}

// CloseStream はストリームを閉じる
func (c *Client) CloseStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotInitialized
	}
	if !c.streaming {
		return ErrStreamNotOpen
	}

	c.streaming = false
	return c.call("CloseStream", c.driver.CloseStream)
}

// SetPalette は疑似カラーパレットを設定する
func (c *Client) SetPalette(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotInitialized
	}
	if !c.streaming {
		return ErrStreamNotOpen
	}
	return c.call("SetPalette", func() error {
		return c.driver.SetPalette(index)
	})
}

// Streaming はストリームが開かれているかを返す
func (c *Client) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// call はSDK関数を呼び出し、成功時にデバッグログを出す（ロック済み前提）
func (c *Client) call(op string, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	c.logger.Debug(fmt.Sprintf("%s: %d", op, guide.CodeOK))
	return nil
}
