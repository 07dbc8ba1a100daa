package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/zonetrust/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 4096)
			convey.So(cfg.Partitions, convey.ShouldEqual, 8)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.SweepInterval, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.WeatherCacheTTL, convey.ShouldEqual, 15*time.Minute)
			convey.So(cfg.DecayRatePerDay, convey.ShouldEqual, 2)
			convey.So(cfg.DecayGrace(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.KafkaEnabled(), convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Brokers(t *testing.T) {
	convey.Convey("Given a broker list with spaces and empty entries", t, func() {
		cfg := config.New()
		cfg.KafkaBrokers = " kafka-1:9092, ,kafka-2:9092,"

		convey.Convey("Then it splits into clean addresses", func() {
			convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"kafka-1:9092", "kafka-2:9092"})
			convey.So(cfg.KafkaEnabled(), convey.ShouldBeTrue)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid values", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"zero partitions", func(c *config.Config) { c.Partitions = 0 }},
			{"negative sweep", func(c *config.Config) { c.SweepInterval = -time.Second }},
			{"zero sweep workers", func(c *config.Config) { c.SweepConcurrency = 0 }},
			{"zero weather ttl", func(c *config.Config) { c.WeatherCacheTTL = 0 }},
			{"zero max results", func(c *config.Config) { c.MaxRecommendations = 0 }},
			{"negative decay", func(c *config.Config) { c.DecayRatePerDay = -1 }},
			{"negative grace", func(c *config.Config) { c.DecayGraceHours = -1 }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"kafka without group", func(c *config.Config) { c.KafkaBrokers = "k:9092"; c.KafkaGroupID = "" }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a zero sweep interval is allowed", func() {
			cfg := config.New()
			cfg.SweepInterval = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
