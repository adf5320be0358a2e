package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	sec := now.Unix()

	cases := map[string]time.Time{
		"2024-10-10T10:10:10Z":            now,
		"2024-10-10T10:10:10.5Z":          now.Add(500 * time.Millisecond),
		strconv.FormatInt(sec, 10):        now,
		strconv.FormatInt(sec*1000+7, 10): now.Add(7 * time.Millisecond),
		"now":                             now,
	}
	for in, want := range cases {
		got, err := ParseTime(in, now)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %v", in, got)
	}

	for _, bad := range []string{"", "yesterday", "-5", "0"} {
		_, err := ParseTime(bad, now)
		assert.Error(t, err, bad)
	}
}

func TestParseMillis(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	got, err := ParseMillis("", 42, now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = ParseMillis("now", 0, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_123), got)

	assert.Equal(t, "2023-11-14T22:13:20.123Z", FormatMillis(1_700_000_000_123))
}
