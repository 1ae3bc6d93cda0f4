package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want Period
	}{
		{"first day of year", date(2026, time.January, 1), Period{1, 2026}},
		{"last day of first period", date(2026, time.January, 14), Period{1, 2026}},
		{"first day of second period", date(2026, time.January, 15), Period{2, 2026}},
		{"december 17 starts period 26", date(2026, time.December, 17), Period{26, 2026}},
		{"december 31 folds into period 26", date(2026, time.December, 31), Period{26, 2026}},
		{"leap day year end", date(2028, time.December, 31), Period{26, 2028}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodOf(tt.day))
		})
	}
}

func TestPeriodBounds(t *testing.T) {
	p := Period{Number: 2, Year: 2026}
	assert.Equal(t, date(2026, time.January, 15).Truncate(24*time.Hour), p.Start())
	assert.Equal(t, date(2026, time.January, 28).Truncate(24*time.Hour), p.End())
	assert.True(t, p.Contains(date(2026, time.January, 20)))
	assert.False(t, p.Contains(date(2026, time.January, 29)))

	last := Period{Number: 26, Year: 2026}
	assert.Equal(t, time.December, last.End().Month())
	assert.Equal(t, 31, last.End().Day())
}

func TestPeriodOrdering(t *testing.T) {
	a := Period{Number: 26, Year: 2025}
	b := Period{Number: 1, Year: 2026}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
	assert.Equal(t, b, a.Next())
}

func TestPeriodSpan(t *testing.T) {
	span := Period{Number: 25, Year: 2025}.Span(Period{Number: 2, Year: 2026})
	require.Len(t, span, 4)
	assert.Equal(t, Period{25, 2025}, span[0])
	assert.Equal(t, Period{26, 2025}, span[1])
	assert.Equal(t, Period{1, 2026}, span[2])
	assert.Equal(t, Period{2, 2026}, span[3])

	assert.Nil(t, Period{Number: 3, Year: 2026}.Span(Period{Number: 2, Year: 2026}))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod(" 7/2026 ")
	require.NoError(t, err)
	assert.Equal(t, Period{Number: 7, Year: 2026}, p)
	assert.Equal(t, "7/2026", p.String())

	for _, bad := range []string{"", "7", "x/2026", "7/x", "0/2026", "27/2026"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
