package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/petems/rate-tray/internal/detect"
	"github.com/petems/rate-tray/internal/logsource"
	"github.com/petems/rate-tray/internal/permissions"
	"github.com/petems/rate-tray/internal/poller"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [text...]",
	Short: "Print sample rates detected in the system log",
	Long: `Without arguments, follow the system log and print each detected rate
until interrupted. With arguments, run each argument through the extractor
and print what it matched.

Examples:
  rate-tray detect
  rate-tray detect "Hi-Res Lossless 24-bit/192 kHz" "44,1 kHz"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			printMatches(args)
			return nil
		}
		return followLog(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func printMatches(texts []string) {
	for _, text := range texts {
		m, ok := detect.Find(text)
		if !ok {
			fmt.Printf("%s %q\n", warningColor.Sprint("no rate"), text)
			continue
		}
		fmt.Printf("%s %s %q\n", successColor.Sprintf("%-9s", m.Rate), infoColor.Sprintf("[%s]", m.Pattern), text)
	}
}

func followLog(parent context.Context) error {
	cfg, log, err := loadConfig(false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	p := poller.New(poller.Options{
		Source:     logsource.NewSystem(),
		Subsystems: cfg.LogSubsystems,
		Logger:     log.With().Str("component", "poller").Logger(),
	})

	events := make(chan detect.RateEvent)
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, events) }()

	fmt.Println(infoColor.Sprintf("Watching %s (Ctrl-C to stop)", strings.Join(cfg.LogSubsystems, ", ")))
	for {
		select {
		case ev := <-events:
			fmt.Printf("%s %s %s\n",
				ev.Timestamp.Format("15:04:05.000"),
				successColor.Sprintf("%-9s", ev.Rate),
				infoColor.Sprint(ev.Source))
		case err := <-errc:
			if errors.Is(err, logsource.ErrPermissionDenied) {
				fmt.Println(errorColor.Sprint(p.Status().Text))
				fmt.Println(permissions.Hint())
				return err
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
