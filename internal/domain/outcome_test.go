package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestOutcome_Class(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    Class
	}{
		{"matched", Outcome{Status: StatusOK, FIPS: strPtr("360610092001007")}, ClassOK},
		{"ok without block", Outcome{Status: StatusOK}, ClassEmpty},
		{"ok with empty code", Outcome{Status: StatusOK, FIPS: strPtr("")}, ClassEmpty},
		{"rate limited", Outcome{Status: StatusOverLimit}, ClassOverLimit},
		{"transport failure", Outcome{Status: StatusException}, ClassException},
		{"provider error", Outcome{Status: "INVALID_REQUEST"}, ClassError},
		{"missing status", Outcome{}, ClassError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.Class())
		})
	}
}

func TestExceptionOutcome(t *testing.T) {
	c := Coordinate{Latitude: "40.752726", Longitude: "-73.977229"}

	out := ExceptionOutcome(c)

	assert.Nil(t, out.FIPS)
	assert.Equal(t, StatusException, out.Status)
	assert.Equal(t, c, out.Coordinate())
	assert.Empty(t, out.FIPSOrEmpty())
	assert.Nil(t, out.RawResponse)
}

func TestIsRateLimited(t *testing.T) {
	err := &RateLimitError{StatusCode: 429}

	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRateLimited(fmt.Errorf("lookup: %w", err)))
	assert.False(t, IsRateLimited(ErrMalformedResponse))
	assert.False(t, IsRateLimited(nil))
	assert.Equal(t, "provider rate limited: status 429", err.Error())
}
