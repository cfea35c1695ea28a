package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lgu-hrms/internal/payroll"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-05-16")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-05-16T23:30:00+08:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-16", FormatDate(got))

	got, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseDate("16/05/2024")
	assert.Error(t, err)
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=10", nil)
	p := ParsePagination(req, DefaultPageLimit, MaxPageLimit)
	assert.Equal(t, Pagination{Limit: MaxPageLimit, Offset: 10}, p)

	req = httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=x", nil)
	p = ParsePagination(req, DefaultPageLimit, MaxPageLimit)
	assert.Equal(t, Pagination{Limit: DefaultPageLimit}, p)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestValidatorCollectsSortedIssues(t *testing.T) {
	v := NewValidator()
	v.Required("year", "", "is required")
	start, ok := v.Date("startDate", "2024-05-31")
	require.True(t, ok)
	end, ok := v.Date("endDate", "2024-05-01")
	require.True(t, ok)
	v.DateOrder("startDate", start, "endDate", end)
	assert.Nil(t, v.OptionalDate("payDate", ""))
	v.OptionalDate("payDate", "soon")

	issues := v.Issues()
	require.Len(t, issues, 4)
	assert.Equal(t, "endDate", issues[0].Field)
	assert.Equal(t, "year", issues[3].Field)
}

func TestFieldIssues(t *testing.T) {
	issues := FieldIssues([]payroll.FieldError{{Field: "WorkingDays", Reason: "gt=0"}, {Field: "Month", Reason: "max=12"}})
	assert.Equal(t, []ValidationIssue{{Field: "month", Reason: "max=12"}, {Field: "workingDays", Reason: "gt=0"}}, issues)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "x", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	assert.ErrorIs(t, DecodeJSON(req, &dst), ErrInvalidJSON)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}{}`))
	assert.ErrorIs(t, DecodeJSON(req, &dst), ErrInvalidJSON)
}
