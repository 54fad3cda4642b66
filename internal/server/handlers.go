package server

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"gavin/internal/camera"
	"gavin/internal/guide"
	"gavin/internal/mjpeg"
)

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceResponse はデバイス情報
type DeviceResponse struct {
	Index int    `json:"index"`
	ID    int32  `json:"id"`
	Name  string `json:"name"`
}

// DevicesResponse はデバイス一覧のレスポンス
type DevicesResponse struct {
	Devices []DeviceResponse `json:"devices"`
}

// StreamInfo は開いているストリームの設定
type StreamInfo struct {
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
	Mode   string `json:"mode"`
}

// ChannelResponse はチャンネル毎の状態
type ChannelResponse struct {
	Name      string     `json:"name"`
	Frames    uint64     `json:"frames"`
	FPS       float64    `json:"fps"`
	Clients   int        `json:"clients"`
	LastFrame *time.Time `json:"last_frame,omitempty"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string            `json:"status"`
	Connected bool              `json:"connected"`
	Device    *DeviceResponse   `json:"device,omitempty"`
	Stream    StreamInfo        `json:"stream"`
	Palette   int               `json:"palette"`
	Uptime    string            `json:"uptime,omitempty"`
	Channels  []ChannelResponse `json:"channels"`
	Server    ServerInfo        `json:"server"`
	Timestamp time.Time         `json:"timestamp"`
}

// PaletteRequest はパレット変更のリクエスト
// 必須・0以上の制約は openapi.yaml で検証する
type PaletteRequest struct {
	Palette int `json:"palette"`
}

// PaletteResponse はパレット変更のレスポンス
type PaletteResponse struct {
	Palette int `json:"palette"`
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// handleStream はMJPEGストリームを配信する
//
// クエリ: channel（または source）, quality (1-100), delay (ミリ秒)
func (s *Server) handleStream(c *gin.Context) {
	channel := c.Query("channel")
	if channel == "" {
		channel = c.Query("source")
	}
	params, err := bindStreamParams(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	quality := 0
	if params.Quality != nil {
		quality = *params.Quality
	}
	delay := time.Duration(-1)
	if params.Delay != nil && *params.Delay >= 0 {
		delay = time.Duration(*params.Delay) * time.Millisecond
	}

	sub, err := s.hub.Subscribe(channel, quality, delay)
	if err != nil {
		errorJSON(c, http.StatusServiceUnavailable, "stream_closed", err.Error())
		return
	}
	defer sub.Close()

	c.Header("Content-Type", mjpeg.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "close")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	headers := map[string]string{"X-Channel": sub.Channel}
	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if _, err := mjpeg.WritePart(c.Writer, frame, headers); err != nil {
				s.logger.Debug("MJPEGの書き込みに失敗", "client", sub.ID, "error", err)
				return
			}
			c.Writer.Flush()
		}
	}
}

// handleIndex はチャンネル一覧のHTMLを返す
func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(mjpeg.IndexHTML(s.hub.Channels())))
}

// handleSnapshot は最新フレームを1枚のJPEGで返す
func (s *Server) handleSnapshot(c *gin.Context) {
	params, err := bindStreamParams(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	quality := 0
	if params.Quality != nil {
		quality = *params.Quality
	}

	data, ok, err := s.hub.Snapshot(c.Query("channel"), quality)
	switch {
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, "encode_failed", err.Error())
	case !ok:
		errorJSON(c, http.StatusNotFound, "no_frame", "まだフレームを受信していません")
	default:
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "image/jpeg", data)
	}
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はカメラとチャンネルの状態を返す
func (s *Server) handleStatus(c *gin.Context) {
	st := s.camera.State()

	resp := StatusResponse{
		Status:    string(st.Status),
		Connected: st.Connected,
		Stream: StreamInfo{
			Width:  st.Info.Width,
			Height: st.Info.Height,
			Mode:   st.Info.VideoMode.String(),
		},
		Palette:   st.Palette,
		Channels:  s.channels(),
		Server:    ServerInfo{Host: s.config.Server.Host, Port: s.config.Server.Port},
		Timestamp: time.Now(),
	}
	if st.Device != nil {
		resp.Device = &DeviceResponse{Index: s.config.Device.ID, ID: st.Device.ID, Name: st.Device.Name}
	}
	if !st.StartedAt.IsZero() && st.Status == camera.StatusActive {
		resp.Uptime = time.Since(st.StartedAt).Truncate(time.Second).String()
	}

	c.JSON(http.StatusOK, resp)
}

// channels は受信統計とクライアント数をチャンネル名順にまとめる
func (s *Server) channels() []ChannelResponse {
	clients := s.hub.Clients()
	var stats map[string]camera.ChannelStats
	if s.stats != nil {
		stats = s.stats.Stats()
	}

	names := make(map[string]struct{})
	for _, name := range s.hub.Channels() {
		names[name] = struct{}{}
	}
	for name := range stats {
		names[name] = struct{}{}
	}
	for name := range clients {
		names[name] = struct{}{}
	}

	channels := make([]ChannelResponse, 0, len(names))
	for name := range names {
		ch := ChannelResponse{Name: name, Clients: clients[name]}
		if st, ok := stats[name]; ok {
			ch.Frames = st.Frames
			ch.FPS = st.FPS
			if !st.LastFrame.IsZero() {
				last := st.LastFrame
				ch.LastFrame = &last
			}
		}
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels
}

// handleDevices は列挙されたデバイス一覧を返す
func (s *Server) handleDevices(c *gin.Context) {
	st := s.camera.State()

	devices := make([]DeviceResponse, 0, len(st.Devices))
	for i, dev := range st.Devices {
		devices = append(devices, DeviceResponse{Index: i, ID: dev.ID, Name: dev.Name})
	}
	c.JSON(http.StatusOK, DevicesResponse{Devices: devices})
}

// handlePalette はストリームのパレットを変更する
func (s *Server) handlePalette(c *gin.Context) {
	var req PaletteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := s.camera.SetPalette(req.Palette)
	var sdkErr *guide.Error
	switch {
	case err == nil:
		s.logger.Info("パレットを変更しました", "palette", req.Palette)
		c.JSON(http.StatusOK, PaletteResponse{Palette: req.Palette})
	case errors.Is(err, camera.ErrStreamNotOpen):
		errorJSON(c, http.StatusConflict, "stream_not_open", err.Error())
	case errors.As(err, &sdkErr):
		errorJSON(c, http.StatusUnprocessableEntity, "sdk_error", err.Error())
	default:
		errorJSON(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
