package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/spf13/cobra"
)

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")

	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary).Width(10)
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Show the output device and the rates it supports",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		fmt.Println(renderDevice(dev))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func renderDevice(dev hardware.Device) string {
	rates := make([]string, 0, len(rate.Canonical))
	for _, r := range rate.Canonical {
		switch {
		case r == dev.NominalRate:
			rates = append(rates, currentStyle.Render("["+r.String()+"]"))
		case dev.Supports(r):
			rates = append(rates, r.String())
		default:
			rates = append(rates, dimStyle.Render(r.String()))
		}
	}

	lines := []string{
		labelStyle.Render("Device") + dev.Name,
		labelStyle.Render("ID") + dev.ID,
		labelStyle.Render("Rate") + dev.NominalRate.String(),
		labelStyle.Render("Rates") + strings.Join(rates, "  "),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
