package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextVersion(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		current int
		next    int
	}{
		{name: "no tags", tags: nil, current: 0, next: 1},
		{name: "gaps", tags: []string{"v1", "v2", "v5"}, current: 5, next: 6},
		{name: "numeric not lexical", tags: []string{"v9", "v10", "v2"}, current: 10, next: 11},
		{name: "foreign tags ignored", tags: []string{"release-1", "v1.2.0", "v3", "vX"}, current: 3, next: 4},
		{name: "only foreign tags", tags: []string{"latest"}, current: 0, next: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, next := NextVersion(tt.tags)
			assert.Equal(t, tt.current, current)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestParseVersion(t *testing.T) {
	n, ok := ParseVersion("v12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	for _, bad := range []string{"", "v", "12", "v1.0", "V1", "v-1"} {
		_, ok := ParseVersion(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, "v7", Tag(7))
}
