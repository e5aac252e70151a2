package tzp

import "strings"

// Profile names recognized by the encoder (spec §4.C, §6). The
// canonical set steers the Content Analyzer's recommendation; the
// aliases are historical profile names from earlier TZP revisions
// that map onto one of the canonical five.
const (
	ProfileLightning = "lightning"
	ProfileFast      = "fast"
	ProfileBalanced  = "balanced"
	ProfileHigh      = "high"
	ProfileMax       = "max"
)

var profileAliases = map[string]string{
	"turbo":    ProfileFast,
	"power":    ProfileHigh,
	"ultimate": ProfileMax,
	"adaptive": ProfileBalanced,
}

// canonicalProfile resolves an alias to its canonical profile name,
// defaulting unknown or empty input to balanced.
func canonicalProfile(profile string) string {
	p := strings.ToLower(strings.TrimSpace(profile))
	switch p {
	case ProfileLightning, ProfileFast, ProfileBalanced, ProfileHigh, ProfileMax:
		return p
	}
	if canon, ok := profileAliases[p]; ok {
		return canon
	}
	return ProfileBalanced
}
