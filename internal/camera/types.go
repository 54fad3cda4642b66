package camera

import (
	"errors"
	"image"
	"time"

	"gavin/internal/guide"
)

// Status はストリームの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // ストリームは停止中
	StatusActive   Status = "active"   // ストリームは動作中
	StatusError    Status = "error"    // エラーが発生
)

var (
	// ErrDeviceIndex はデバイスインデックスが一覧の範囲外であることを表す
	ErrDeviceIndex = errors.New("デバイスインデックスが範囲外です")

	// ErrNotInitialized はクライアントが開かれていないことを表す
	ErrNotInitialized = errors.New("クライアントが初期化されていません")

	// ErrStreamNotOpen はストリームが開かれていないことを表す
	ErrStreamNotOpen = errors.New("ストリームが開かれていません")
)

// チャンネル名
const (
	ChannelRGB       = "0"
	ChannelSource    = "1"
	ChannelYUV       = "2"
	ChannelParamLine = "3"
)

// ImageSink はチャンネル毎の画像を受け取る
//
// フレームコールバックから呼ばれるため、実装はスレッドセーフである必要がある。
type ImageSink interface {
	Publish(channel string, img image.Image)
}

// ImageSinkFunc は関数をImageSinkとして使うためのアダプター
type ImageSinkFunc func(channel string, img image.Image)

// Publish はfを呼ぶ
func (f ImageSinkFunc) Publish(channel string, img image.Image) {
	f(channel, img)
}

// FrameObserver はフレームの受信を観測する（メトリクス用）
type FrameObserver interface {
	ObserveFrame(channel string)
	ObserveStatus(status guide.DeviceStatus)
}

// ChannelStats はチャンネル毎の受信統計
type ChannelStats struct {
	Frames    uint64    // 受信フレーム数
	FPS       float64   // 直近のフレームレート
	LastFrame time.Time // 最後にフレームを受信した時刻
}

// State はセッションの現在の状態
type State struct {
	Status    Status
	Connected bool
	Devices   []guide.Device
	Device    *guide.Device
	Info      guide.DeviceInfo
	Palette   int
	StartedAt time.Time
}
