package weather_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
	. "github.com/smartystreets/goconvey/convey"
)

var observed = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

func reading(p weather.Precipitation, tempC, windKph float64, day bool) *weather.Reading {
	return &weather.Reading{
		TemperatureC:  tempC,
		Precipitation: p,
		WindKph:       windKph,
		IsDay:         day,
		ObservedAt:    observed,
	}
}

func TestAdapterModifiers(t *testing.T) {
	Convey("Given the default adapter", t, func() {
		a := weather.NewAdapter()

		Convey("No reading is neutral", func() {
			So(a.Modifiers(nil), ShouldResemble, weather.Modifiers{})
		})

		Convey("A pleasant day favours outdoor zones", func() {
			m := a.Modifiers(reading(weather.PrecipNone, 22, 8, true))
			So(m.OutdoorPenalty, ShouldBeLessThan, 0)
			So(m.Hazardous, ShouldBeFalse)
			So(m.Warning, ShouldBeEmpty)
			So(m.Recommendation, ShouldNotBeEmpty)
		})

		Convey("Rain penalizes outdoor zones and rewards indoor ones", func() {
			m := a.Modifiers(reading(weather.PrecipRain, 14, 10, true))
			So(m.OutdoorPenalty, ShouldBeGreaterThan, 0)
			So(m.IndoorBonus, ShouldBeGreaterThan, 0)
			So(m.WalkabilityDelta, ShouldBeLessThan, 0)
			So(m.Hazardous, ShouldBeFalse)
		})

		Convey("Heavier precipitation costs more", func() {
			drizzle := a.Modifiers(reading(weather.PrecipDrizzle, 14, 10, true))
			rain := a.Modifiers(reading(weather.PrecipRain, 14, 10, true))
			heavy := a.Modifiers(reading(weather.PrecipHeavyRain, 14, 10, true))
			So(drizzle.OutdoorPenalty, ShouldBeLessThan, rain.OutdoorPenalty)
			So(rain.OutdoorPenalty, ShouldBeLessThan, heavy.OutdoorPenalty)
		})

		Convey("A storm is hazardous and carries a warning", func() {
			m := a.Modifiers(reading(weather.PrecipStorm, 18, 40, true))
			So(m.Hazardous, ShouldBeTrue)
			So(m.Warning, ShouldContainSubstring, "Storm")
		})

		Convey("Extreme heat and hurricane wind are hazardous", func() {
			So(a.Modifiers(reading(weather.PrecipNone, 42, 5, true)).Hazardous, ShouldBeTrue)
			So(a.Modifiers(reading(weather.PrecipNone, 36, 5, true)).Hazardous, ShouldBeFalse)
			So(a.Modifiers(reading(weather.PrecipNone, 20, 95, true)).Hazardous, ShouldBeTrue)
		})

		Convey("Several warnings are joined", func() {
			m := a.Modifiers(reading(weather.PrecipHeavyRain, 20, 60, true))
			So(m.Warning, ShouldEqual, "Heavy rain; Strong wind")
		})

		Convey("Penalties are capped", func() {
			m := a.Modifiers(reading(weather.PrecipStorm, 45, 120, false))
			So(m.OutdoorPenalty, ShouldBeLessThanOrEqualTo, 60)
			So(m.IndoorBonus, ShouldBeLessThanOrEqualTo, 30)
		})

		Convey("Night lowers safety", func() {
			day := a.Modifiers(reading(weather.PrecipDrizzle, 12, 5, true))
			night := a.Modifiers(reading(weather.PrecipDrizzle, 12, 5, false))
			So(night.SafetyDelta, ShouldBeLessThan, day.SafetyDelta)
		})
	})

	Convey("Given an adapter with custom thresholds", t, func() {
		a := weather.NewAdapter(weather.WithHeatThresholds(30, 33), weather.WithWindThresholds(30, 60))

		Convey("The thresholds are applied", func() {
			So(a.Modifiers(reading(weather.PrecipNone, 34, 5, true)).Hazardous, ShouldBeTrue)
			So(a.Modifiers(reading(weather.PrecipNone, 20, 65, true)).Hazardous, ShouldBeTrue)
		})
	})
}

func TestReading(t *testing.T) {
	Convey("Summary formats a reading", t, func() {
		So(weather.Summary(reading(weather.PrecipRain, 18, 12, true)), ShouldEqual, "18°C, rain, wind 12 km/h")
		So(weather.Summary(reading(weather.PrecipHeavyRain, 9.6, 30, false)), ShouldEqual, "10°C, heavy rain, wind 30 km/h, night")
		So(weather.Summary(reading(weather.PrecipNone, 25, 0, true)), ShouldEqual, "25°C, clear, wind 0 km/h")
		So(weather.Summary(nil), ShouldEqual, "unavailable")
	})

	Convey("Validate rejects implausible readings", t, func() {
		So(reading(weather.PrecipRain, 18, 12, true).Validate(), ShouldBeNil)
		So(errors.Is(reading("HAIL", 18, 12, true).Validate(), weather.ErrInvalidReading), ShouldBeTrue)
		So(errors.Is(reading(weather.PrecipNone, 120, 12, true).Validate(), weather.ErrInvalidReading), ShouldBeTrue)
		So(errors.Is(reading(weather.PrecipNone, 18, -1, true).Validate(), weather.ErrInvalidReading), ShouldBeTrue)
	})
}

func TestCache(t *testing.T) {
	Convey("Given a cache with a 10 minute TTL", t, func() {
		c := weather.NewCache(weather.WithTTL(10 * time.Minute))
		lisbon := geo.Point{Lat: 38.7223, Lon: -9.1393}
		porto := geo.Point{Lat: 41.1579, Lon: -8.6291}
		r := *reading(weather.PrecipRain, 16, 20, true)

		c.Put(lisbon, r, observed)

		Convey("A fresh reading is returned for the same cell", func() {
			got, ok := c.Get(lisbon, observed.Add(5*time.Minute))
			So(ok, ShouldBeTrue)
			So(*got, ShouldResemble, r)
		})

		Convey("Other cells miss", func() {
			_, ok := c.Get(porto, observed)
			So(ok, ShouldBeFalse)
		})

		Convey("A stale reading misses but stays until evicted", func() {
			_, ok := c.Get(lisbon, observed.Add(10*time.Minute))
			So(ok, ShouldBeFalse)
			So(c.Len(), ShouldEqual, 1)

			So(c.EvictExpired(observed.Add(10*time.Minute)), ShouldEqual, 1)
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("Eviction keeps fresh entries", func() {
			c.Put(porto, r, observed.Add(8*time.Minute))
			So(c.EvictExpired(observed.Add(12*time.Minute)), ShouldEqual, 1)
			_, ok := c.Get(porto, observed.Add(12*time.Minute))
			So(ok, ShouldBeTrue)
		})

		Convey("Returned readings are copies", func() {
			got, _ := c.Get(lisbon, observed)
			got.TemperatureC = 99
			again, _ := c.Get(lisbon, observed)
			So(again.TemperatureC, ShouldEqual, 16)
		})
	})
}
