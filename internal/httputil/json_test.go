package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_KeepsNumbers(t *testing.T) {
	var payload struct {
		Commission json.Number `json:"commission"`
	}
	require.NoError(t, DecodeJSON(strings.NewReader(`{"commission": 12.50}`), &payload))
	assert.Equal(t, "12.50", payload.Commission.String())
}

func TestDecodeJSON_Rejects(t *testing.T) {
	var payload struct {
		Name string `json:"name"`
	}
	assert.Error(t, DecodeJSON(strings.NewReader(""), &payload))
	assert.Error(t, DecodeJSON(strings.NewReader(`{"name":"a","extra":1}`), &payload))
	assert.Error(t, DecodeJSON(strings.NewReader(`{"name":"a"}{"name":"b"}`), &payload))
}

func TestParsePagination(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/v1/users?page=3&page_size=500", nil))
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.Offset())
	assert.Equal(t, int64(3), p.TotalPages(201))

	p = ParsePagination(httptest.NewRequest("GET", "/v1/users?page=-1&page_size=abc", nil))
	assert.Equal(t, Pagination{Page: 1, PageSize: 20}, p)
}
