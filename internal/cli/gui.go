package cli

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/spf13/cobra"

	"gavin/internal/guide"
	"gavin/internal/mosaic"
	"gavin/internal/tui"
)

// defaultGUILog はGUI実行時のログ出力先
// 画面をTUIが使うため標準エラー出力には書かない
const defaultGUILog = "gavin-gui.log"

// NewGUICommand は gavin-gui コマンドを作成する
func NewGUICommand() *cobra.Command {
	return newGUICommand(newEnv(), runGUI)
}

func newGUICommand(e *env, run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gavin-gui",
		Short: "ストリームを開き、ターミナルにプレビューを表示する",
		Long: `デバイスのストリームを開き、状態とプレビューをターミナルに表示します。
q または Ctrl+C でストリームを閉じて終了します。`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          e.command(run),
	}

	e.addCommonFlags(cmd)
	e.addDeviceFlags(cmd)
	e.addDebugFlag(cmd)
	e.defaultLogFile = defaultGUILog
	return cmd
}

func runGUI(ctx context.Context, e *env) error {
	p, err := newPipeline(e)
	if err != nil {
		return err
	}
	defer p.hub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var previewingMosaic atomic.Bool
	sessionErr := p.runSession(ctx, cancel)
	p.runMosaic(ctx, e, func() bool {
		return previewingMosaic.Load() || p.mosaicWatched()
	})

	onChannel := func(channel string) {
		previewingMosaic.Store(channel == mosaic.Channel)
	}
	model := tui.NewModel(tui.Options{
		Camera:    p.session,
		Stats:     p.splitter,
		Frames:    p.hub,
		Channel:   e.cfg.Stream.Channel,
		Palettes:  guide.PaletteCount(guide.Kind(e.cfg.Driver.Kind)),
		Logger:    e.logger,
		OnChannel: onChannel,
	})
	tuiErr := tui.Run(ctx, model)
	cancel()

	return errors.Join(<-sessionErr, tuiErr)
}
