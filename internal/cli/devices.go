package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gavin/internal/camera"
)

func newDevicesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "接続されているデバイスの一覧を表示する",
		Args:  cobra.NoArgs,
		RunE:  e.command(runDevices),
	}
	e.addCommonFlags(cmd)
	return cmd
}

func runDevices(_ context.Context, e *env) (err error) {
	driver, err := e.newDriver(e.cfg.DriverOptions())
	if err != nil {
		return fmt.Errorf("ドライバーの作成に失敗: %w", err)
	}

	client := camera.NewClient(driver, e.logger)
	if err := client.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	devices, err := client.DeviceList()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tID\tNAME")
	for i, dev := range devices {
		fmt.Fprintf(w, "%d\t%d\t%s\n", i, dev.ID, dev.Name)
	}
	return w.Flush()
}

func newConfigCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "有効な設定をYAMLで表示する",
		Long: `設定ファイル・環境変数 (GAVIN_*)・フラグを反映した設定をYAMLで表示します。
出力はそのまま設定ファイルとして使えます。`,
		Args: cobra.NoArgs,
		RunE: e.command(runConfig),
	}
	e.addCommonFlags(cmd)
	e.addDeviceFlags(cmd)
	e.addServerFlags(cmd)
	return cmd
}

func runConfig(_ context.Context, e *env) error {
	enc := yaml.NewEncoder(e.out)
	enc.SetIndent(2)
	if err := enc.Encode(e.cfg); err != nil {
		return fmt.Errorf("設定の出力に失敗: %w", err)
	}
	return enc.Close()
}
