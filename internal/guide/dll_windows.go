//go:build windows && amd64

package guide

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// C構造体と同じメモリレイアウトを持つ型

type cDeviceInfo struct {
	Width     int32
	Height    int32
	VideoMode int32
}

type cFrameData struct {
	FrameWidth  int32
	FrameHeight int32
	RGB         *byte
	RGBLen      int32
	Src         *int16
	SrcLen      int32
	YUV         *int16
	YUVLen      int32
	ParaLine    *int16
	ParaLineLen int32
}

type cDevice struct {
	DevID   int32
	DevName [128]byte
}

type cDeviceList struct {
	DevCount int32
	Devs     [MaxDevices]cDevice
}

// SDKはプロセス全体で1つのストリームしか持たないため、コールバックも1組だけ作る
var (
	callbackOnce   sync.Once
	frameCallback  uintptr
	statusCallback uintptr

	activeMu sync.RWMutex
	active   Handlers
)

func setActive(h Handlers) {
	activeMu.Lock()
	active = h
	activeMu.Unlock()
}

func currentHandlers() Handlers {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

func initCallbacks() {
	callbackOnce.Do(func() {
		// amd64では8バイトを超える値渡しの構造体はコピーへのポインタで渡される
		frameCallback = windows.NewCallback(func(p *cFrameData) uintptr {
			if p != nil {
				currentHandlers().frame(copyFrame(p))
			}
			return 0
		})
		statusCallback = windows.NewCallback(func(status uintptr) uintptr {
			currentHandlers().status(DeviceStatus(int32(status)))
			return 0
		})
	})
}

// copyFrame はSDKのバッファをGoのスライスへコピーする
func copyFrame(p *cFrameData) Frame {
	f := Frame{Width: int(p.FrameWidth), Height: int(p.FrameHeight)}
	if p.RGBLen > 0 && p.RGB != nil {
		f.RGB = append([]byte(nil), unsafe.Slice(p.RGB, p.RGBLen)...)
	}
	if p.SrcLen > 0 && p.Src != nil {
		f.Src = append([]int16(nil), unsafe.Slice(p.Src, p.SrcLen)...)
	}
	if p.YUVLen > 0 && p.YUV != nil {
		f.YUV = append([]int16(nil), unsafe.Slice(p.YUV, p.YUVLen)...)
	}
	if p.ParaLineLen > 0 && p.ParaLine != nil {
		f.ParaLine = append([]int16(nil), unsafe.Slice(p.ParaLine, p.ParaLineLen)...)
	}
	return f
}

// dllDriver はGuideUSB3LiveStream.dllを呼び出すDriver実装
type dllDriver struct {
	dll *windows.LazyDLL

	initialize        *windows.LazyProc
	exit              *windows.LazyProc
	getDeviceList     *windows.LazyProc
	openStream        *windows.LazyProc
	openStreamByDevID *windows.LazyProc
	closeStream       *windows.LazyProc
	setPalette        *windows.LazyProc
}

// NewDLLDriver はDLLを読み込んでDriverを作成する
func NewDLLDriver(path string) (Driver, error) {
	if path == "" {
		path = DefaultLibrary
	}

	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("%s の読み込みに失敗: %w", path, err)
	}

	d := &dllDriver{
		dll:               dll,
		initialize:        dll.NewProc("Initialize"),
		exit:              dll.NewProc("Exit"),
		getDeviceList:     dll.NewProc("GetDeviceList"),
		openStream:        dll.NewProc("OpenStream"),
		openStreamByDevID: dll.NewProc("OpenStreamByDevID"),
		closeStream:       dll.NewProc("CloseStream"),
		setPalette:        dll.NewProc("SetPalette"),
	}

	for _, p := range []*windows.LazyProc{
		d.initialize, d.exit, d.getDeviceList, d.openStream,
		d.openStreamByDevID, d.closeStream, d.setPalette,
	} {
		if err := p.Find(); err != nil {
			return nil, fmt.Errorf("%s が見つかりません: %w", p.Name, err)
		}
	}

	initCallbacks()
	return d, nil
}

func (d *dllDriver) Initialize() error {
	r1, _, _ := d.initialize.Call()
	return check("Initialize", int32(r1))
}

func (d *dllDriver) Exit() error {
	r1, _, _ := d.exit.Call()
	return check("Exit", int32(r1))
}

func (d *dllDriver) GetDeviceList() ([]Device, error) {
	var list cDeviceList
	r1, _, _ := d.getDeviceList.Call(uintptr(unsafe.Pointer(&list)))
	if err := check("GetDeviceList", int32(r1)); err != nil {
		return nil, err
	}

	n := int(list.DevCount)
	if n > MaxDevices {
		n = MaxDevices
	}
	devices := make([]Device, 0, n)
	for _, dev := range list.Devs[:max(n, 0)] {
		name := dev.DevName[:]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		devices = append(devices, Device{ID: dev.DevID, Name: string(name)})
	}
	return devices, nil
}

func (d *dllDriver) OpenStream(info DeviceInfo, handlers Handlers) error {
	setActive(handlers)
	ci := cDeviceInfo{Width: info.Width, Height: info.Height, VideoMode: int32(info.VideoMode)}
	r1, _, _ := d.openStream.Call(uintptr(unsafe.Pointer(&ci)), frameCallback, statusCallback)
	runtime.KeepAlive(&ci)
	if err := check("OpenStream", int32(r1)); err != nil {
		setActive(Handlers{})
		return err
	}
	return nil
}

func (d *dllDriver) OpenStreamByDevID(devID int32, info DeviceInfo, handlers Handlers) error {
	setActive(handlers)
	ci := cDeviceInfo{Width: info.Width, Height: info.Height, VideoMode: int32(info.VideoMode)}
	r1, _, _ := d.openStreamByDevID.Call(uintptr(devID), uintptr(unsafe.Pointer(&ci)), frameCallback, statusCallback)
	runtime.KeepAlive(&ci)
	if err := check("OpenStreamByDevID", int32(r1)); err != nil {
		setActive(Handlers{})
		return err
	}
	return nil
}

func (d *dllDriver) CloseStream() error {
	r1, _, _ := d.closeStream.Call()
	setActive(Handlers{})
	return check("CloseStream", int32(r1))
}

func (d *dllDriver) SetPalette(index int) error {
	r1, _, _ := d.setPalette.Call(uintptr(index))
	return check("SetPalette", int32(r1))
}
