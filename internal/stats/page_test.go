package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimits_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		page    int
		perPage int
		want    PageRequest
	}{
		{"defaults", SelfLimits, 0, 0, PageRequest{Page: 1, PerPage: 25}},
		{"self cap", SelfLimits, 2, 500, PageRequest{Page: 2, PerPage: 100}},
		{"self within cap", SelfLimits, 1, 100, PageRequest{Page: 1, PerPage: 100}},
		{"following cap", FollowingLimits, 1, 100, PageRequest{Page: 1, PerPage: 25}},
		{"negative", FollowingLimits, -3, -1, PageRequest{Page: 1, PerPage: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.limits.Normalize(tt.page, tt.perPage))
		})
	}
}

func TestPageInfo_MiddlePage(t *testing.T) {
	req := SelfLimits.Normalize(2, 10)
	info := NewPageInfo(req, 30)

	assert.Equal(t, 10, req.Offset())
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasNext())
	assert.True(t, info.HasPrev())
	require.NotNil(t, info.NextPage())
	require.NotNil(t, info.PrevPage())
	assert.Equal(t, 3, *info.NextPage())
	assert.Equal(t, 1, *info.PrevPage())
}

func TestPageInfo_LastPage(t *testing.T) {
	info := NewPageInfo(SelfLimits.Normalize(3, 10), 30)

	assert.False(t, info.HasNext())
	assert.Nil(t, info.NextPage())
	assert.True(t, info.HasPrev())
}

func TestPageInfo_Empty(t *testing.T) {
	info := NewPageInfo(FollowingLimits.Normalize(1, 0), 0)

	assert.Equal(t, 0, info.TotalPages)
	assert.Equal(t, 25, info.PerPage)
	assert.False(t, info.HasNext())
	assert.False(t, info.HasPrev())
}

func TestPageInfo_OutOfRangeHasNoNeighbours(t *testing.T) {
	info := NewPageInfo(SelfLimits.Normalize(5, 10), 30)

	assert.False(t, info.HasNext())
	assert.False(t, info.HasPrev())
}

func TestLimits_Normalize_HugePageKeepsOffsetNonNegative(t *testing.T) {
	for _, limits := range []Limits{SelfLimits, FollowingLimits, UserListLimits} {
		req := limits.Normalize(math.MaxInt/20 + 1, 25)

		assert.GreaterOrEqual(t, req.Offset(), 0)
		assert.Equal(t, math.MaxInt/25, req.Page)

		info := NewPageInfo(req, 3)
		assert.False(t, info.HasNext())
		assert.False(t, info.HasPrev())
	}

	req := SelfLimits.Normalize(math.MaxInt, 0)
	assert.GreaterOrEqual(t, req.Offset(), 0)
}
