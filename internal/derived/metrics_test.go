package derived

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-indexer/pkg/types"
)

func tickAt(t time.Time, close string, volume string) types.PriceHistory {
	return types.PriceHistory{
		Timestamp: t,
		Close:     decimal.RequireFromString(close),
		Volume:    decimal.RequireFromString(volume),
	}
}

func TestPriceAtReturnsOldestWithinWindow(t *testing.T) {
	t.Parallel()
	now := time.Now()
	// newest-first: t-1h, t-5h, t-13h
	ticks := []types.PriceHistory{
		tickAt(now.Add(-1*time.Hour), "0.70", "10"),
		tickAt(now.Add(-5*time.Hour), "0.60", "10"),
		tickAt(now.Add(-13*time.Hour), "0.50", "10"),
	}

	got := priceAt(ticks, now.Add(-12*time.Hour), ticks[0].Close)
	want := decimal.RequireFromString("0.60")
	if !got.Equal(want) {
		t.Errorf("priceAt() = %v, want %v", got, want)
	}
}

func TestPriceAtFallsBackToCurrentWhenWindowEmpty(t *testing.T) {
	t.Parallel()
	now := time.Now()
	ticks := []types.PriceHistory{
		tickAt(now.Add(-25*time.Hour), "0.60", "10"),
	}
	current := decimal.RequireFromString("0.70")
	got := priceAt(ticks, now.Add(-24*time.Hour), current)
	if !got.Equal(current) {
		t.Errorf("priceAt() = %v, want current %v", got, current)
	}
}

func TestPercentChangeZeroBase(t *testing.T) {
	t.Parallel()
	got := percentChange(decimal.RequireFromString("0.7"), decimal.Zero)
	if !got.Equal(decimal.Zero) {
		t.Errorf("percentChange() = %v, want 0", got)
	}
}

func TestPercentChangeUp(t *testing.T) {
	t.Parallel()
	got := percentChange(decimal.RequireFromString("0.6"), decimal.RequireFromString("0.5"))
	want := decimal.RequireFromString("20")
	if !got.Equal(want) {
		t.Errorf("percentChange() = %v, want %v", got, want)
	}
}

func TestVolumeMomentumSingleTick(t *testing.T) {
	t.Parallel()
	ticks := []types.PriceHistory{tickAt(time.Now(), "0.5", "10")}
	got := volumeMomentum(ticks)
	if !got.Equal(decimal.Zero) {
		t.Errorf("volumeMomentum() with 1 tick = %v, want 0 (B5)", got)
	}
}

func TestVolumeMomentumSplitsInHalf(t *testing.T) {
	t.Parallel()
	now := time.Now()
	// newest-first: recent half volume 30, older half volume 10
	ticks := []types.PriceHistory{
		tickAt(now, "0.5", "15"),
		tickAt(now, "0.5", "15"),
		tickAt(now, "0.5", "5"),
		tickAt(now, "0.5", "5"),
	}
	got := volumeMomentum(ticks)
	want := decimal.RequireFromString("2") // (30-10)/10
	if !got.Equal(want) {
		t.Errorf("volumeMomentum() = %v, want %v", got, want)
	}
}

func TestPopulationStdDevTooFewTicks(t *testing.T) {
	t.Parallel()
	got := populationStdDev([]types.PriceHistory{tickAt(time.Now(), "0.5", "1")})
	if !got.Equal(decimal.Zero) {
		t.Errorf("populationStdDev() with 1 tick = %v, want 0", got)
	}
}

func TestPopulationStdDevMatchesManualComputation(t *testing.T) {
	t.Parallel()
	ticks := []types.PriceHistory{
		tickAt(time.Now(), "0.2", "1"),
		tickAt(time.Now(), "0.4", "1"),
		tickAt(time.Now(), "0.6", "1"),
		tickAt(time.Now(), "0.8", "1"),
	}
	// mean = 0.5, population variance = mean((x-mean)^2) = (0.09+0.01+0.01+0.09)/4 = 0.05
	want := math.Sqrt(0.05)
	got, _ := populationStdDev(ticks).Float64()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("populationStdDev() = %v, want %v", got, want)
	}
}
