package guide

import (
	"fmt"
	"strconv"
	"strings"
)

// Code はSDK関数の戻り値を表す
type Code int32

const (
	CodeOK             Code = 1    // エラーなし
	CodeDeviceNotFound Code = -1   // デバイスが見つからない
	CodePointNull      Code = -2   // NULLポインタ
	CodePointsTooLarge Code = -3   // 値が大きすぎる
	CodePointsTooSmall Code = -4   // 値が小さすぎる
	CodeMallocFailed   Code = -5   // メモリ確保に失敗
	CodeResolution     Code = -6   // 解像度の設定エラー
	CodeUnknown        Code = -999 // 不明なエラー
)

var codeNames = map[Code]string{
	CodeOK:             "ERROR_NO",
	CodeDeviceNotFound: "ERROR_DEVICE_NOT_FOUND",
	CodePointNull:      "ERROR_POINT_NULL",
	CodePointsTooLarge: "ERROR_POINTS_TOO_LARGE",
	CodePointsTooSmall: "ERROR_POINTS_TOO_SMALL",
	CodeMallocFailed:   "ERROR_MALLOC_FAILED",
	CodeResolution:     "ERROR_RESOLUTION",
	CodeUnknown:        "ERROR_UNKNOW",
}

// String はSDKヘッダーと同じ名前を返す
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(c))
}

// VideoMode はデバイスのビデオモード
type VideoMode int32

const (
	ModeX16         VideoMode = 0 // X16
	ModeX16Param    VideoMode = 1 // X16+パラメータライン
	ModeY16         VideoMode = 2 // Y16
	ModeY16Param    VideoMode = 3 // Y16+パラメータライン
	ModeYUV         VideoMode = 4 // YUV
	ModeYUVParam    VideoMode = 5 // YUV+パラメータライン
	ModeY16YUV      VideoMode = 6 // Y16+YUV
	ModeY16ParamYUV VideoMode = 7 // Y16+パラメータライン+YUV
)

var modeNames = []string{
	"X16", "X16_PARAM", "Y16", "Y16_PARAM",
	"YUV", "YUV_PARAM", "Y16_YUV", "Y16_PARAM_YUV",
}

// String はモード名を返す
func (m VideoMode) String() string {
	if m.Valid() {
		return modeNames[m]
	}
	return fmt.Sprintf("MODE(%d)", int32(m))
}

// Valid はSDKが定義するモードかどうかを返す
func (m VideoMode) Valid() bool {
	return m >= ModeX16 && m <= ModeY16ParamYUV
}

// HasSource はX16/Y16の生データを含むモードかどうか
func (m VideoMode) HasSource() bool {
	switch m {
	case ModeX16, ModeX16Param, ModeY16, ModeY16Param, ModeY16YUV, ModeY16ParamYUV:
		return true
	}
	return false
}

// HasYUV はYUVデータを含むモードかどうか
func (m VideoMode) HasYUV() bool {
	switch m {
	case ModeYUV, ModeYUVParam, ModeY16YUV, ModeY16ParamYUV:
		return true
	}
	return false
}

// HasParamLine はパラメータラインを含むモードかどうか
func (m VideoMode) HasParamLine() bool {
	switch m {
	case ModeX16Param, ModeY16Param, ModeYUVParam, ModeY16ParamYUV:
		return true
	}
	return false
}

// ParseVideoMode は数値またはモード名からVideoModeを得る
func ParseVideoMode(s string) (VideoMode, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		m := VideoMode(n)
		if !m.Valid() {
			return 0, fmt.Errorf("無効なビデオモード: %d", n)
		}
		return m, nil
	}
	for i, name := range modeNames {
		if strings.EqualFold(name, s) {
			return VideoMode(i), nil
		}
	}
	return 0, fmt.Errorf("無効なビデオモード: %q", s)
}

// DeviceStatus はデバイスの接続状態
type DeviceStatus int32

const (
	StatusConnected    DeviceStatus = 1  // 接続
	StatusDisconnected DeviceStatus = -1 // 切断
)

// String は状態名を返す
func (s DeviceStatus) String() string {
	switch s {
	case StatusConnected:
		return "DEVICE_CONNECT_OK"
	case StatusDisconnected:
		return "DEVICE_DISCONNECT_OK"
	default:
		return fmt.Sprintf("STATUS(%d)", int32(s))
	}
}

// DeviceInfo はストリームを開く際に渡すビデオ設定
type DeviceInfo struct {
	Width     int32
	Height    int32
	VideoMode VideoMode
}

// MaxDevices はデバイス一覧の最大件数
const MaxDevices = 32

// Device は列挙されたデバイス
type Device struct {
	ID   int32  // デバイスID
	Name string // デバイス名
}

// Frame は1フレーム分の画像データ
//
// 各スライスはコールバック内でコピーされたもので、受け取った側が所有する。
type Frame struct {
	Width    int
	Height   int
	RGB      []byte  // RGB24 (Width*Height*3)
	Src      []int16 // X16/Y16 の生データ
	YUV      []int16 // YUV データ
	ParaLine []int16 // パラメータライン
}
