// Package versioning puts the subset label file under data version control:
// it initializes DVC and its remote on first use, then commits, tags and
// pushes a new v<N> data version whenever the artifact changed.
package versioning

import (
	"fmt"
	"regexp"
	"strconv"
)

var versionTag = regexp.MustCompile(`^v(\d+)$`)

// ParseVersion returns N for a tag of the form v<N>.
func ParseVersion(tag string) (int, bool) {
	m := versionTag.FindStringSubmatch(tag)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextVersion returns the highest version among tags and its successor.
// Tags not of the form v<N> are ignored; with none, current is 0.
func NextVersion(tags []string) (current, next int) {
	for _, t := range tags {
		if n, ok := ParseVersion(t); ok && n > current {
			current = n
		}
	}
	return current, current + 1
}

// Tag formats a version number as a tag name.
func Tag(n int) string {
	return fmt.Sprintf("v%d", n)
}
