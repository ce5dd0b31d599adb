package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return c
}

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"limit=50&offset=10", 50, 10},
		{"limit=500", 100, 0},
		{"limit=-1&offset=-5", 20, 0},
		{"limit=abc&offset=xyz", 20, 0},
	}
	for _, tc := range tests {
		limit, offset := ParsePaginationParams(contextWithQuery(tc.query))
		assert.Equal(t, tc.wantLimit, limit, "query %q", tc.query)
		assert.Equal(t, tc.wantOffset, offset, "query %q", tc.query)
	}
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	id, err := ParseIDParam(c, "id")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, bad := range []string{"0", "-3", "abc", ""} {
		c.Params = gin.Params{{Key: "id", Value: bad}}
		_, err := ParseIDParam(c, "id")
		assert.Error(t, err, "value %q", bad)
	}
}

func TestGenerateConfirmationCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateConfirmationCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes should not all collide")
}
