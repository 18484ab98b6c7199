package shared

import (
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePageRequest(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 1, defaultPerPage, 0},
		{"malformed", "?page=abc&per_page=-4", 1, defaultPerPage, 0},
		{"second page", "?page=2&per_page=10", 2, 10, 10},
		{"per page capped", "?per_page=1000", 1, maxPerPage, 0},
		{"huge page clamped", "?page=" + strconv.Itoa(1<<62) + "&per_page=100", maxPage, maxPerPage, (maxPage - 1) * maxPerPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParsePageRequest(httptest.NewRequest("GET", "/items"+tc.query, nil))
			assert.Equal(t, tc.wantPage, req.Page)
			assert.Equal(t, tc.wantLimit, req.Limit())
			assert.Equal(t, tc.wantOffset, req.Offset())
			assert.GreaterOrEqual(t, req.Offset(), 0)
		})
	}
}

func TestPaginationOffsetNeverNegative(t *testing.T) {
	p := NewPagination(int(^uint(0)>>1), 50, 120)
	assert.Equal(t, maxPage, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Positive(t, p.Offset())
}
