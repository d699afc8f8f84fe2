package browser

import "github.com/sjbaek/recollect/internal/config"

// Group is one contiguous run of platforms sharing an automation profile.
// Profile.Name is empty for a platform with no configured profile, which
// always groups alone under the generic default directory.
type Group struct {
	Profile   config.Profile
	Platforms []string
}

// GroupByProfile partitions platforms into ordered runs by profile
// membership, preserving the original platform order within and across
// groups. Runs are contiguous: [p1 p2 p3] with p1,p3 on profile A and p2 on
// B yields (A,[p1]) (B,[p2]) (A,[p3]), so the browser is restarted at every
// identity boundary and sessions never cross-contaminate.
func GroupByProfile(platforms []string, cfg config.Config) []Group {
	var out []Group
	for _, platform := range platforms {
		profile, ok := cfg.ProfileFor(platform)
		if !ok {
			out = append(out, Group{Platforms: []string{platform}})
			continue
		}
		if n := len(out); n > 0 && out[n-1].Profile.Name == profile.Name {
			out[n-1].Platforms = append(out[n-1].Platforms, platform)
			continue
		}
		out = append(out, Group{Profile: profile, Platforms: []string{platform}})
	}
	return out
}
