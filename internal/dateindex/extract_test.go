package dateindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDates(t *testing.T) {
	loc := time.UTC
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, loc) }

	tests := []struct {
		name string
		text string
		want []time.Time
	}{
		{
			name: "same day in three formats is deduplicated",
			text: "Meeting on 2024-01-05, follow-up 01/05/2024, and January 5, 2024",
			want: []time.Time{day(2024, 1, 5)},
		},
		{
			name: "impossible date dropped",
			text: "Due 2023-02-30",
			want: []time.Time{},
		},
		{
			name: "abbreviated months and ordinals",
			text: "Kickoff Sept 3rd, 2024. Review Dec. 12 2023. Launch mar 1, 2025.",
			want: []time.Time{day(2023, 12, 12), day(2024, 9, 3), day(2025, 3, 1)},
		},
		{
			name: "dash separated US date",
			text: "Filed 12-25-2022",
			want: []time.Time{day(2022, 12, 25)},
		},
		{
			name: "leap day",
			text: "2024-02-29 ok but 02/29/2023 is not",
			want: []time.Time{day(2024, 2, 29)},
		},
		{
			name: "no dates",
			text: "Version 1.2.3 shipped in build 20240105.",
			want: []time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDates(tt.text, loc))
		})
	}
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay("2024-03-10", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDay("03/10/2024", time.UTC)
	assert.Error(t, err)
}
