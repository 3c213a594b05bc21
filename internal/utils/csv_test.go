package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoDecisionEngine/internal/domain"
)

func TestCandlesCSVRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{OpenTime: start, CloseTime: start.Add(time.Hour - time.Second), Symbol: "ETHUSDT", Interval: "1h", Open: 3000.5, High: 3010, Low: 2990.25, Close: 3005, Volume: 1234.567},
		{OpenTime: start.Add(time.Hour), CloseTime: start.Add(2*time.Hour - time.Second), Symbol: "ETHUSDT", Interval: "1h", Open: 3005, High: 3020, Low: 3001, Close: 3018.75, Volume: 987},
	}
	path := filepath.Join(t.TempDir(), "nested", "eth.csv")

	require.NoError(t, WriteCandlesToCSV(candles, path))
	got, err := ReadCandlesFromCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range candles {
		assert.True(t, candles[i].OpenTime.Equal(got[i].OpenTime))
		assert.True(t, candles[i].CloseTime.Equal(got[i].CloseTime))
		assert.Equal(t, candles[i].Close, got[i].Close)
		assert.Equal(t, candles[i].Volume, got[i].Volume)
	}
}

func TestReadCandlesFromCSV_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"empty", "", "read header"},
		{"bad time", "open_time,close_time,symbol,interval,open,high,low,close,volume\nyesterday,x,ETH,1h,1,1,1,1,1\n", "line 2"},
		{"bad price", "open_time,close_time,symbol,interval,open,high,low,close,volume\n2024-03-10T00:00:00Z,2024-03-10T01:00:00Z,ETH,1h,1,1,1,abc,1\n", "close"},
		{"short row", "open_time,close_time,symbol,interval,open,high,low,close,volume\n2024-03-10T00:00:00Z,ETH\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadCandlesFromCSV(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	_, err := ReadCandlesFromCSV(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
