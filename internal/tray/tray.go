package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/rate-tray/internal/app"
	"github.com/petems/rate-tray/internal/logging"
	"github.com/petems/rate-tray/internal/permissions"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/rs/zerolog"
)

type UI struct {
	app     *app.App
	version string
	commit  string
	log     zerolog.Logger
	ctx     context.Context

	// Menu items
	mStatus  *systray.MenuItem
	mDevice  *systray.MenuItem
	mTrack   *systray.MenuItem
	mMonitor *systray.MenuItem
	mAuto    *systray.MenuItem
	mFixed   *systray.MenuItem
	mRates   *systray.MenuItem
	rates    map[rate.Hz]*systray.MenuItem
}

func New(application *app.App, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		version: version,
		commit:  commit,
		log:     log,
		rates:   make(map[rate.Hz]*systray.MenuItem),
	}
}

// Run blocks until the user quits. It must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	s := u.app.Status()
	systray.SetTitle(title(s))
	systray.SetTooltip("Matches the output sample rate to the playing track")

	// Build menu
	u.mStatus = systray.AddMenuItem(statusLine(s), "")
	u.mStatus.Disable()
	u.mDevice = systray.AddMenuItem(deviceLine(s), "")
	u.mDevice.Disable()
	u.mTrack = systray.AddMenuItem(trackLine(s), "")
	u.mTrack.Disable()
	systray.AddSeparator()

	u.mMonitor = systray.AddMenuItem(monitorTitle(s.Monitoring), "Start or stop following playback")
	u.mAuto = systray.AddMenuItemCheckbox("Auto Switch", "Follow the track's sample rate", s.AutoSwitch)
	u.mFixed = systray.AddMenuItemCheckbox("Fixed Family Rates", "Use one rate per rate family", s.UseFixedFamilyRates)

	u.mRates = systray.AddMenuItem("Set Rate", "Apply a rate now")
	u.buildRateMenu()

	systray.AddSeparator()
	mCopy := systray.AddMenuItem("Copy Diagnostics", "Copy status to the clipboard")
	mPrivacy := systray.AddMenuItem("Open Privacy Settings", permissions.Hint())
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About RateTray")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	events, unsubscribe := u.app.Subscribe()
	go u.watchStatus(events)

	// Event loop
	go u.handleEvents(mCopy, mPrivacy, mLogs, mAbout, mQuit, unsubscribe)
}

func (u *UI) handleEvents(mCopy, mPrivacy, mLogs, mAbout, mQuit *systray.MenuItem, unsubscribe func()) {
	for {
		select {
		case <-u.mMonitor.ClickedCh:
			u.toggleMonitoring()
		case <-u.mAuto.ClickedCh:
			u.toggleAutoSwitch()
		case <-u.mFixed.ClickedCh:
			u.toggleFixedFamily()
		case <-mCopy.ClickedCh:
			u.copyDiagnostics()
		case <-mPrivacy.ClickedCh:
			if err := permissions.OpenSettings(u.ctx); err != nil {
				u.log.Error().Err(err).Msg("Failed to open privacy settings")
			}
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			unsubscribe()
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildRateMenu() {
	for _, r := range rate.Canonical {
		item := u.mRates.AddSubMenuItemCheckbox(r.String(), "", false)
		u.rates[r] = item

		go func(target rate.Hz, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				u.log.Info().Int("rate", int(target)).Msg("Manual rate selected")
				if err := u.app.SetRate(u.ctx, target); err != nil {
					u.log.Error().Err(err).Int("rate", int(target)).Msg("Failed to set rate")
				}
			}
		}(r, item)
	}
}

// watchStatus applies coordinator events to the menu.
func (u *UI) watchStatus(events <-chan app.Event) {
	for ev := range events {
		u.render(ev.Status)
	}
}

func (u *UI) render(s app.Status) {
	systray.SetTitle(title(s))
	u.mStatus.SetTitle(statusLine(s))
	u.mDevice.SetTitle(deviceLine(s))
	u.mTrack.SetTitle(trackLine(s))
	u.mMonitor.SetTitle(monitorTitle(s.Monitoring))
	setChecked(u.mAuto, s.AutoSwitch)
	setChecked(u.mFixed, s.UseFixedFamilyRates)

	for r, item := range u.rates {
		setChecked(item, r == s.Device.NominalRate)
		if len(s.Device.SupportedRates) == 0 || s.Device.Supports(r) {
			item.Enable()
		} else {
			item.Disable()
		}
	}
}

func (u *UI) toggleMonitoring() {
	var err error
	if u.app.IsMonitoring() {
		err = u.app.Stop(u.ctx)
	} else {
		err = u.app.Start(u.ctx)
	}
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to toggle monitoring")
	}
}

func (u *UI) toggleAutoSwitch() {
	on := !u.app.Status().AutoSwitch
	if err := u.app.SetAutoSwitch(u.ctx, on); err != nil {
		u.log.Error().Err(err).Msg("Failed to change auto switch")
		return
	}
	u.log.Info().Bool("enabled", on).Msg("Changed auto switch")
}

func (u *UI) toggleFixedFamily() {
	on := !u.app.Status().UseFixedFamilyRates
	if err := u.app.SetFixedFamilyRates(u.ctx, on); err != nil {
		u.log.Error().Err(err).Msg("Failed to change fixed family rates")
		return
	}
	u.log.Info().Bool("enabled", on).Msg("Changed fixed family rates")
}

func (u *UI) copyDiagnostics() {
	if err := clipboard.WriteAll(diagnostics(u.app.Status(), u.version, u.commit)); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy diagnostics")
		return
	}
	u.log.Info().Msg("Copied diagnostics to clipboard")
}

func (u *UI) openLogs() {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	if err := exec.CommandContext(u.ctx, opener, logging.Path()).Start(); err != nil {
		u.log.Error().Err(err).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	// TODO: Show about dialog with native UI
	fmt.Printf("RateTray %s (%s)\nMatches the output sample rate to the playing track\n", u.version, u.commit)
}

func (u *UI) onExit() {
	if err := u.app.Shutdown(context.Background()); err != nil {
		u.log.Error().Err(err).Msg("Shutdown error")
	}
}

func monitorTitle(monitoring bool) string {
	if monitoring {
		return "Stop Monitoring"
	}
	return "Start Monitoring"
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}
