// Package tui はターミナル上でカメラの状態とプレビューを表示する
package tui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gavin/internal/camera"
)

// refreshInterval は画面の更新間隔
const refreshInterval = 200 * time.Millisecond

// Camera は表示と操作に使うカメラのインターフェース
type Camera interface {
	State() camera.State
	SetPalette(index int) error
}

// StatsSource はチャンネル毎の受信統計を返す
type StatsSource interface {
	Stats() map[string]camera.ChannelStats
}

// FrameSource はチャンネル毎の最新画像を返す
type FrameSource interface {
	Latest(channel string) (image.Image, bool)
	Channels() []string
}

// Options はモデルの設定
type Options struct {
	Camera   Camera
	Stats    StatsSource
	Frames   FrameSource
	Channel  string // 最初にプレビューするチャンネル
	Palettes int    // パレット数（pキーで循環）
	Logger   *slog.Logger

	// OnChannel はプレビューするチャンネルが決まるたびに呼ばれる（任意）
	OnChannel func(channel string)
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	previewStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
)

// Model はbubbleteaのモデル
type Model struct {
	opts    Options
	logger  *slog.Logger
	channel string
	width   int
	height  int
	err     error
	quit    bool
}

// NewModel は新しいModelを作成する
func NewModel(opts Options) Model {
	if opts.Channel == "" {
		opts.Channel = camera.ChannelRGB
	}
	if opts.OnChannel != nil {
		opts.OnChannel(opts.Channel)
	}
	return Model{
		opts:    opts,
		logger:  opts.Logger.With("component", "tui"),
		channel: opts.Channel,
	}
}

// Channel はプレビュー中のチャンネルを返す
func (m Model) Channel() string {
	return m.channel
}

// Quitting は終了操作が行われたかを返す
func (m Model) Quitting() bool {
	return m.quit
}

// Init は画面更新のタイマーを開始する
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update はメッセージを処理する
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quit = true
		return m, tea.Quit

	case "tab":
		m.channel = nextChannel(m.opts.Frames.Channels(), m.channel)
		if m.opts.OnChannel != nil {
			m.opts.OnChannel(m.channel)
		}

	case "p":
		if m.opts.Palettes <= 0 {
			return m, nil
		}
		next := (m.opts.Camera.State().Palette + 1) % m.opts.Palettes
		if next < 0 {
			next = 0
		}
		m.err = m.opts.Camera.SetPalette(next)
		if m.err != nil {
			m.logger.Warn("パレットの変更に失敗", "palette", next, "error", m.err)
		} else {
			m.logger.Debug("パレットを変更", "palette", next)
		}
	}
	return m, nil
}

// nextChannel はcurrentの次のチャンネルを返す
func nextChannel(channels []string, current string) string {
	if len(channels) == 0 {
		return current
	}
	i := slices.Index(channels, current)
	return channels[(i+1)%len(channels)]
}

// View は画面を描画する
func (m Model) View() string {
	if m.quit {
		return ""
	}

	st := m.opts.Camera.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Gavin"))
	b.WriteString("\n\n")

	status := string(st.Status)
	if st.Status == camera.StatusActive {
		status = activeStyle.Render(status)
	} else if st.Status == camera.StatusError {
		status = errorStyle.Render(status)
	}
	connected := "disconnected"
	if st.Connected {
		connected = activeStyle.Render("connected")
	}
	fmt.Fprintf(&b, "%s %s  %s %s\n", labelStyle.Render("stream:"), status, labelStyle.Render("device:"), connected)

	device := "-"
	if st.Device != nil {
		device = fmt.Sprintf("%s (id %d)", st.Device.Name, st.Device.ID)
	}
	palette := "-"
	if st.Palette >= 0 {
		palette = fmt.Sprint(st.Palette)
	}
	fmt.Fprintf(&b, "%s %s  %s %dx%d %s  %s %s\n",
		labelStyle.Render("camera:"), device,
		labelStyle.Render("mode:"), st.Info.Width, st.Info.Height, st.Info.VideoMode,
		labelStyle.Render("palette:"), palette)

	b.WriteString(m.renderChannels())

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	if preview := m.renderPreview(); preview != "" {
		b.WriteString(previewStyle.Render(preview))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("tab: channel • p: palette • q: quit"))
	return b.String()
}

func (m Model) renderChannels() string {
	var stats map[string]camera.ChannelStats
	if m.opts.Stats != nil {
		stats = m.opts.Stats.Stats()
	}

	var b strings.Builder
	for _, ch := range m.opts.Frames.Channels() {
		marker := " "
		if ch == m.channel {
			marker = ">"
		}
		s := stats[ch]
		fmt.Fprintf(&b, "%s ch%s  frames %-8d fps %5.1f\n", marker, ch, s.Frames, s.FPS)
	}
	return b.String()
}

// renderPreview はプレビュー領域に収まるサイズで画像を描画する
func (m Model) renderPreview() string {
	img, ok := m.opts.Frames.Latest(m.channel)
	if !ok {
		return ""
	}

	// 枠線とヘッダー分を除く
	cols := m.width - 2
	rows := m.height - 10
	if cols < 4 || rows < 2 {
		return ""
	}
	return RenderHalfBlocks(img, cols, rows)
}

// Run はプログラムを起動し、終了操作またはctxのキャンセルまでブロックする
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("TUIの実行に失敗: %w", err)
	}
	return nil
}
