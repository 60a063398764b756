//go:build darwin

package trackinfo

const musicScript = `if application "Music" is running then
	tell application "Music"
		if player state is playing then return (name of current track) & linefeed & (artist of current track)
	end tell
end if
return ""`

// NewSystem asks Music.app through osascript. The first call triggers the
// Automation permission prompt.
func NewSystem() Provider {
	return command{name: "osascript", args: []string{"-e", musicScript}}
}
