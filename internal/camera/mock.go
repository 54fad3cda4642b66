package camera

import (
	"sync"

	"gavin/internal/guide"
)

// MockDriver はテスト用のモックDriver実装
//
// 各SDK関数の呼び出し回数を記録し、Fail* で失敗させることができる。
type MockDriver struct {
	mu sync.Mutex

	Devices []guide.Device
	calls   map[string]int

	// 最後に開かれたストリーム
	LastDevID    int32
	LastInfo     guide.DeviceInfo
	LastHandlers guide.Handlers

	// テスト制御用
	failInit    error
	failOpen    error
	failPalette error
}

// NewMockDriver は新しいMockDriverを作成する
func NewMockDriver(devices ...guide.Device) *MockDriver {
	return &MockDriver{
		Devices: devices,
		calls:   make(map[string]int),
	}
}

// Calls は指定したSDK関数の呼び出し回数を返す
func (m *MockDriver) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// FailInitialize はInitializeをerrで失敗させる
func (m *MockDriver) FailInitialize(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failInit = err
}

// FailOpen はストリームのオープンをerrで失敗させる
func (m *MockDriver) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = err
}

// FailSetPalette はSetPaletteをerrで失敗させる
func (m *MockDriver) FailSetPalette(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPalette = err
}

// Emit は最後に開かれたストリームのハンドラへフレームを送る
func (m *MockDriver) Emit(f guide.Frame) {
	m.mu.Lock()
	h := m.LastHandlers
	m.mu.Unlock()

	if h.Frame != nil {
		h.Frame(f)
	}
}

func (m *MockDriver) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Initialize"]++
	return m.failInit
}

func (m *MockDriver) Exit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Exit"]++
	return nil
}

func (m *MockDriver) GetDeviceList() ([]guide.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GetDeviceList"]++
	return append([]guide.Device(nil), m.Devices...), nil
}

func (m *MockDriver) OpenStream(info guide.DeviceInfo, handlers guide.Handlers) error {
	return m.open("OpenStream", 0, info, handlers)
}

func (m *MockDriver) OpenStreamByDevID(devID int32, info guide.DeviceInfo, handlers guide.Handlers) error {
	return m.open("OpenStreamByDevID", devID, info, handlers)
}

func (m *MockDriver) open(op string, devID int32, info guide.DeviceInfo, handlers guide.Handlers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if m.failOpen != nil {
		return m.failOpen
	}
	m.LastDevID = devID
	m.LastInfo = info
	m.LastHandlers = handlers
	return nil
}

func (m *MockDriver) CloseStream() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CloseStream"]++
	return nil
}

func (m *MockDriver) SetPalette(_ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SetPalette"]++
	return m.failPalette
}
