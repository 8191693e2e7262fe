package firmware

import (
	"fmt"
	"sort"
)

// UpgradeOptions is a set of boolean flags interpreted by the upgrader
// when building the reflash command. Flags are single letters matching
// the remote tool's command line switches.
type UpgradeOptions map[string]bool

// Clone returns a copy so batches can hand the same options to every
// child operation without sharing the map.
func (o UpgradeOptions) Clone() UpgradeOptions {
	if o == nil {
		return nil
	}
	out := make(UpgradeOptions, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// OptionSpec describes one recognized upgrade flag.
type OptionSpec struct {
	Title   string
	Default bool
}

// OptionsSchema is the per-upgrader declaration of recognized flags and
// their mutual-exclusion constraints.
type OptionsSchema struct {
	Options   map[string]OptionSpec
	Conflicts [][2]string
}

// Validate rejects unknown flags and enabled conflicting pairs. The error
// names the specific conflicting pair.
func (s *OptionsSchema) Validate(opts UpgradeOptions) error {
	for flag := range opts {
		if _, ok := s.Options[flag]; !ok {
			return &OptionsError{Reason: fmt.Sprintf("unrecognized upgrade option %q", flag)}
		}
	}
	for _, pair := range s.Conflicts {
		if opts[pair[0]] && opts[pair[1]] {
			return newConflictingOptionsError(pair[0], pair[1])
		}
	}
	return nil
}

// Flags renders the enabled options as command line switches, applying
// schema defaults for flags the caller left unset. Output order is
// deterministic.
func (s *OptionsSchema) Flags(opts UpgradeOptions) []string {
	enabled := make(map[string]bool)
	for flag, value := range opts {
		if value {
			enabled[flag] = true
		}
	}
	for flag, spec := range s.Options {
		if _, set := opts[flag]; !set && spec.Default {
			enabled[flag] = true
		}
	}
	flags := make([]string, 0, len(enabled))
	for flag := range enabled {
		flags = append(flags, "-"+flag)
	}
	sort.Strings(flags)
	return flags
}
