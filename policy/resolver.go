package policy

import (
	"sort"
	"strings"
)

// SelectProfiles returns the configured profiles restricted to the requested
// ids, preserving the configured order. An empty request selects everything.
func SelectProfiles(all []Profile, requested []string) ([]Profile, error) {
	if len(requested) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}

	var selected []Profile
	for _, p := range all {
		if want[p.ID] {
			selected = append(selected, p)
			delete(want, p.ID)
		}
	}

	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for id := range want {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return nil, configErr("unknown profile id(s): %s", strings.Join(unknown, ", "))
	}
	if len(selected) == 0 {
		return nil, configErr("no profiles selected for scanning")
	}
	return selected, nil
}
