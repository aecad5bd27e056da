package observation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportDetails_Scan(t *testing.T) {
	var d ReportDetails

	require.NoError(t, d.Scan([]byte(`{"strengths":["focus"],"themeOfDay":"water","formatted_report":"# Day"}`)))
	assert.Equal(t, []string{"focus"}, d.Strengths)
	assert.Equal(t, "water", d.ThemeOfDay)
	assert.True(t, d.HasFormattedReport())

	require.NoError(t, d.Scan(`{"curiositySeed":"why is the sky blue","unknown":1}`))
	assert.Equal(t, "why is the sky blue", d.CuriositySeed)
	assert.Empty(t, d.Strengths)

	require.NoError(t, d.Scan("not json"))
	assert.Equal(t, ReportDetails{}, d)

	require.NoError(t, d.Scan(nil))
	assert.False(t, d.HasFormattedReport())

	assert.Error(t, d.Scan(12))
}

func TestReportDetails_ValueOmitsEmpty(t *testing.T) {
	v, err := ReportDetails{ThemeOfDay: "shapes"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"themeOfDay":"shapes"}`, v.(string))
}
