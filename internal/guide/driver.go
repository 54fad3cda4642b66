package guide

// FrameHandler はフレーム受信時に呼ばれる
//
// SDKのスレッドから呼ばれるため、実装はスレッドセーフである必要がある。
type FrameHandler func(frame Frame)

// StatusHandler は接続状態の変化時に呼ばれる
type StatusHandler func(status DeviceStatus)

// Handlers はストリームのコールバックをまとめたもの
type Handlers struct {
	Frame  FrameHandler
	Status StatusHandler
}

func (h Handlers) frame(f Frame) {
	if h.Frame != nil {
		h.Frame(f)
	}
}

func (h Handlers) status(s DeviceStatus) {
	if h.Status != nil {
		h.Status(s)
	}
}

// Driver はSDK関数の呼び出しを担うインターフェース
type Driver interface {
	// Initialize はモジュールを初期化する（起動時に1回）
	Initialize() error

	// Exit はモジュールを終了する（終了時に1回）
	Exit() error

	// GetDeviceList はUSBデバイス一覧を取得する
	GetDeviceList() ([]Device, error)

	// OpenStream は最初のデバイスでストリームを開く
	OpenStream(info DeviceInfo, handlers Handlers) error

	// OpenStreamByDevID は指定デバイスIDでストリームを開く
	OpenStreamByDevID(devID int32, info DeviceInfo, handlers Handlers) error

	// CloseStream はストリームを閉じる
	CloseStream() error

	// SetPalette は疑似カラーパレットを設定する
	SetPalette(index int) error
}

// DefaultLibrary はSDKのDLL名
const DefaultLibrary = "GuideUSB3LiveStream.dll"

// Kind はドライバーの種類
type Kind string

const (
	KindDLL Kind = "dll" // ネイティブSDK
	KindSim Kind = "sim" // シミュレーション
)

// DLLPalettes はSDKが持つ疑似カラーパレットの数
const DLLPalettes = 10

// PaletteCount はドライバー種別毎の切り替え可能なパレット数を返す
func PaletteCount(kind Kind) int {
	if kind == KindSim {
		return SimPalettes
	}
	return DLLPalettes
}

// Options はドライバー作成時の設定
type Options struct {
	Kind    Kind
	Library string // DLLのパス（空ならデフォルト名）
	FPS     int    // simのフレームレート
	Devices int    // simのデバイス数
}

// New は設定に応じたドライバーを作成する
func New(opts Options) (Driver, error) {
	switch opts.Kind {
	case KindDLL, "":
		return NewDLLDriver(opts.Library)
	case KindSim:
		return NewSimDriver(SimOptions{FPS: opts.FPS, Devices: opts.Devices}), nil
	default:
		return nil, &UnknownKindError{Kind: opts.Kind}
	}
}

// UnknownKindError は未知のドライバー種別を表す
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return "未知のドライバー種別: " + string(e.Kind)
}
