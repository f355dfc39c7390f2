package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func frozenClock(t *testing.T) clockwork.Clock {
	t.Helper()
	c := clockwork.NewFakeClockAt(time.Date(2025, time.November, 12, 9, 0, 0, 0, time.UTC))
	SetClock(c)
	t.Cleanup(func() { SetClock(nil) })
	return c
}

func TestCredibility_SourceAuthorityOrdering(t *testing.T) {
	c := frozenClock(t)
	now := c.Now()

	score := func(source string) float64 {
		return Credibility(source, "flooding near the beach", 13.05, 80.28, now, false, false)
	}

	incois := score(SourceINCOIS)
	iot := score(SourceIoT)
	citizen := score(SourceCitizen)
	social := score(SourceSocial)
	unknown := score("carrier-pigeon")

	assert.GreaterOrEqual(t, incois, citizen)
	assert.GreaterOrEqual(t, iot, citizen)
	assert.GreaterOrEqual(t, citizen, social)
	assert.GreaterOrEqual(t, social, unknown)
}

func TestCredibility_RecencyDecay(t *testing.T) {
	c := frozenClock(t)
	now := c.Now()

	fresh := Credibility(SourceCitizen, "water rising", 13.05, 80.28, now, false, false)
	dayOld := Credibility(SourceCitizen, "water rising", 13.05, 80.28, now.Add(-24*time.Hour), false, false)
	weekOld := Credibility(SourceCitizen, "water rising", 13.05, 80.28, now.Add(-7*24*time.Hour), false, false)

	assert.Greater(t, fresh, dayOld)
	assert.Greater(t, dayOld, weekOld)

	// Decay only eats the recency component; source authority survives.
	assert.Greater(t, weekOld, 0.3)
}

func TestCredibility_MissingTimestampFallsBackToNow(t *testing.T) {
	c := frozenClock(t)

	withNow := Credibility(SourceCitizen, "flooding", 13.05, 80.28, c.Now(), false, false)
	withZero := Credibility(SourceCitizen, "flooding", 13.05, 80.28, time.Time{}, false, false)
	assert.Equal(t, withNow, withZero)
}

func TestCredibility_FutureTimestampCountsAsFresh(t *testing.T) {
	c := frozenClock(t)

	future := Credibility(SourceCitizen, "flooding", 13.05, 80.28, c.Now().Add(time.Hour), false, false)
	now := Credibility(SourceCitizen, "flooding", 13.05, 80.28, c.Now(), false, false)
	assert.Equal(t, now, future)
}

func TestCredibility_LocationPlausibility(t *testing.T) {
	c := frozenClock(t)
	now := c.Now()

	plausible := Credibility(SourceCitizen, "flooding", 13.05, 80.28, now, false, false)
	nullIsland := Credibility(SourceCitizen, "flooding", 0, 0, now, false, false)
	outOfRange := Credibility(SourceCitizen, "flooding", 113.0, 80.28, now, false, false)

	assert.Greater(t, plausible, nullIsland)
	assert.Equal(t, nullIsland, outOfRange)
}

func TestCredibility_MediaBonuses(t *testing.T) {
	c := frozenClock(t)
	now := c.Now()

	plain := Credibility(SourceSocial, "flooding", 13.05, 80.28, now, false, false)
	withMedia := Credibility(SourceSocial, "flooding", 13.05, 80.28, now, true, false)
	withVerified := Credibility(SourceSocial, "flooding", 13.05, 80.28, now, true, true)

	assert.Greater(t, withMedia, plain)
	assert.Greater(t, withVerified, withMedia)
	assert.LessOrEqual(t, withVerified, 1.0)
}

func TestCredibility_ClampedToUnitInterval(t *testing.T) {
	c := frozenClock(t)

	best := Credibility(SourceINCOIS, "official advisory", 13.05, 80.28, c.Now(), true, true)
	assert.LessOrEqual(t, best, 1.0)
	assert.GreaterOrEqual(t, best, 0.0)

	worst := Credibility("", "", 0, 0, c.Now().Add(-30*24*time.Hour), false, false)
	assert.GreaterOrEqual(t, worst, 0.0)
}
