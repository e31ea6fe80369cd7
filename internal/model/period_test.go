package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod_AcceptsBothForms(t *testing.T) {
	p, err := ParsePeriod("2024-Q2")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2024, Quarter: 2}, p)

	p, err = ParsePeriod("2024Q2")
	require.NoError(t, err)
	assert.Equal(t, "2024-Q2", p.String())
	assert.Equal(t, "TTM-2024Q2", p.TTMKey())
}

func TestParsePeriod_RejectsMalformedKeys(t *testing.T) {
	for _, bad := range []string{"2024", "2024-Q5", "Q2-2024", "24Q2", ""} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, bad)
	}
}

func TestPeriod_PrevCrossesYearBoundary(t *testing.T) {
	p := Period{Year: 2024, Quarter: 1}
	assert.Equal(t, Period{Year: 2023, Quarter: 4}, p.Prev())
	assert.Equal(t, Period{Year: 2023, Quarter: 1}, p.YearAgo())
	assert.True(t, p.Prev().Before(p))
}
