package main

import (
	"fmt"

	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <rate>",
	Short: "Set the output device's sample rate",
	Long: `Set the output device's nominal sample rate. Rates may be written as
44100, 44.1k, 96kHz or 192000Hz. When the device does not support the rate,
the closest supported rate is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := rate.Parse(args[0])
		if err != nil {
			return err
		}

		cfg, log, err := loadConfig(false)
		if err != nil {
			return err
		}
		hw, closeHW, err := newController(log)
		if err != nil {
			return err
		}
		defer closeHW()

		dev, err := hw.Snapshot(cmd.Context(), cfg.DeviceID)
		if err != nil {
			return err
		}
		closest, ok := rate.ClosestSupported(target, dev.SupportedRates)
		if !ok {
			return fmt.Errorf("%w: %s reports no supported rates", hardware.ErrUnsupportedRate, dev.Name)
		}
		if closest != target {
			fmt.Println(warningColor.Sprintf("%s does not support %s, using %s", dev.Name, target, closest))
		}

		res, err := hw.SetNominalRate(cmd.Context(), dev.ID, closest)
		if err != nil {
			return err
		}
		if d := res.Discrepancy; d != nil {
			fmt.Println(warningColor.Sprintf("%s settled at %.2f Hz instead of %d Hz", dev.Name, d.Actual, int(d.Requested)))
			return nil
		}
		fmt.Println(successColor.Sprintf("%s set to %s", dev.Name, res.ActualHz()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
}
