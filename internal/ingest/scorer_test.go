package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		value       *float64
		competition string
		days        *int
		want        int
	}{
		{"no signals", nil, "", nil, 5},
		{"large open long runway", fptr(2_000_000), FullAndOpenCompetition, iptr(45), 10},
		{"tiny and urgent", fptr(50), "", iptr(3), 4},
		{"mid value", fptr(600_000), "", nil, 7},
		{"small value", fptr(150_000), "", iptr(10), 6},
		{"exactly one hundred thousand", fptr(100_000), "", nil, 5},
		{"exactly thirty days", nil, "", iptr(30), 5},
		{"exactly seven days", nil, "", iptr(7), 5},
		{"past deadline", nil, "", iptr(-4), 4},
		{"set aside competition", fptr(1_500_000), "Total Small Business Set-Aside", iptr(60), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.value, tt.competition, tt.days)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 1)
			assert.LessOrEqual(t, got, 10)
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 1, clampScore(-3))
	assert.Equal(t, 10, clampScore(12))
	assert.Equal(t, 6, clampScore(6))
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, DaysUntil(nil, now))

	in45 := now.Add(45*24*time.Hour + time.Hour)
	assert.Equal(t, 45, *DaysUntil(&in45, now))

	halfDayAgo := now.Add(-12 * time.Hour)
	assert.Equal(t, -1, *DaysUntil(&halfDayAgo, now))

	laterToday := now.Add(6 * time.Hour)
	assert.Equal(t, 0, *DaysUntil(&laterToday, now))
}
