//go:build !darwin

package trackinfo

// NewSystem asks the active MPRIS player through playerctl.
func NewSystem() Provider {
	return command{name: "playerctl", args: []string{"metadata", "--format", "{{title}}\n{{artist}}"}}
}
