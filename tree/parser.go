// Package tree invokes the external dependency-graph tool and reconstructs
// ancestor chains from its depth-prefixed listing.
package tree

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/crategate/crategate/types"
)

// ErrParse marks a listing line that does not match the expected grammar.
// A partially reconstructed tree cannot be trusted for policy decisions, so
// any parse error aborts the whole profile scan.
var ErrParse = errors.New("tree: parse error")

// lineRe captures the depth prefix and the crate/version payload. cargo tree
// --prefix depth emits the depth digits with no separator before the name.
var lineRe = regexp.MustCompile(`^(\d+)(.+)$`)

// cycleMarker flags an already-visited subtree in the listing.
const cycleMarker = " (*)"

// Parse turns one profile's raw listing into dependency occurrences, each
// carrying a snapshot of its full ancestor chain. Input order matters: the
// listing is a preorder depth-first walk, so an explicit stack suffices.
func Parse(profileID string, lines []string) ([]types.DependencyOccurrence, error) {
	var (
		occurrences []types.DependencyOccurrence
		stack       []string
	)

	for _, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		depth, crate, version, err := parseLine(raw)
		if err != nil {
			return nil, err
		}

		if depth == 0 {
			stack = []string{crate}
		} else {
			for len(stack) > depth {
				stack = stack[:len(stack)-1]
			}
			// The source tool occasionally skips an ancestor line; pad with a
			// placeholder rather than inventing a parent we never saw.
			for len(stack) < depth {
				stack = append(stack, types.MissingParent)
			}
			stack = append(stack, crate)
		}

		chain := make([]string, len(stack))
		copy(chain, stack)

		occurrences = append(occurrences, types.DependencyOccurrence{
			ProfileID: profileID,
			Crate:     crate,
			Version:   version,
			Chain:     chain,
		})
	}

	return occurrences, nil
}

func parseLine(raw string) (depth int, crate, version string, err error) {
	match := lineRe.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return 0, "", "", fmt.Errorf("%w: invalid tree line format: %q", ErrParse, raw)
	}

	depth, err = strconv.Atoi(match[1])
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: invalid depth in line: %q", ErrParse, raw)
	}

	payload := strings.ReplaceAll(strings.TrimSpace(match[2]), cycleMarker, "")
	fields := strings.Fields(payload)
	if len(fields) < 2 {
		return 0, "", "", fmt.Errorf("%w: missing crate/version payload in line: %q", ErrParse, raw)
	}

	crate = fields[0]
	version = fields[1]
	if !strings.HasPrefix(version, "v") {
		version = types.UnknownVersion
	}
	return depth, crate, version, nil
}
