// Package logging はlog/slogを使った構造化ログの設定を提供する
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ログレベル
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// 出力フォーマット
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options はロガーの設定
type Options struct {
	Level  string    // DEBUG / INFO / WARN / ERROR
	Format string    // text / json
	Debug  bool      // trueならLevelに関係なくDEBUG
	Writer io.Writer // 出力先（nilならstderr）
}

// New は設定に従ってロガーを作成する
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := ParseLevel(opts.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, FormatJSON) {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel は文字列をslog.Levelに変換する
// 不明な値はINFOになる
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard は何も出力しないロガーを返す（テスト用）
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
