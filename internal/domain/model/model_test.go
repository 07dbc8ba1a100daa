package model_test

import (
	"testing"
	"time"

	"github.com/okian/zonetrust/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseIntelType(t *testing.T) {
	Convey("Given raw intel type strings", t, func() {
		Convey("Known types parse regardless of case and padding", func() {
			typ, ok := model.ParseIntelType("  hazard_report ")
			So(ok, ShouldBeTrue)
			So(typ, ShouldEqual, model.IntelHazardReport)

			for _, known := range model.IntelTypes {
				parsed, ok := model.ParseIntelType(string(known))
				So(ok, ShouldBeTrue)
				So(parsed, ShouldEqual, known)
			}
		})

		Convey("Unknown types are rejected", func() {
			_, ok := model.ParseIntelType("RUMOUR")
			So(ok, ShouldBeFalse)
			_, ok = model.ParseIntelType("")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSubmissionSeverity(t *testing.T) {
	Convey("Given hazard submissions", t, func() {
		sub := func(payload map[string]any) model.IntelSubmission {
			return model.IntelSubmission{Type: model.IntelHazardReport, Payload: payload}
		}

		So(sub(map[string]any{"severity": "high"}).Severity(), ShouldEqual, model.SeverityHigh)
		So(sub(map[string]any{"severity": " LOW "}).Severity(), ShouldEqual, model.SeverityLow)

		Convey("Missing, unknown or non-string severities default to MEDIUM", func() {
			So(sub(nil).Severity(), ShouldEqual, model.SeverityMedium)
			So(sub(map[string]any{"severity": "catastrophic"}).Severity(), ShouldEqual, model.SeverityMedium)
			So(sub(map[string]any{"severity": 3}).Severity(), ShouldEqual, model.SeverityMedium)
		})
	})
}

func TestTextures(t *testing.T) {
	Convey("Given the texture taxonomy", t, func() {
		Convey("Every listed texture is valid and falls in a pace group", func() {
			for _, tex := range model.Textures {
				So(tex.Valid(), ShouldBeTrue)
				So(tex.IsActive() || tex.IsRelaxed(), ShouldBeTrue)
			}
		})

		Convey("Indoor textures are never outdoor", func() {
			for _, tex := range model.Textures {
				if tex.IsIndoor() {
					So(tex.IsOutdoor(), ShouldBeFalse)
				}
			}
		})

		Convey("Unknown textures are invalid", func() {
			So(model.Texture("BEACH").Valid(), ShouldBeFalse)
			So(model.Texture("").Valid(), ShouldBeFalse)
		})
	})
}

func TestNewZoneConfidenceState(t *testing.T) {
	Convey("Given a zone with no history", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		st := model.NewZoneConfidenceState("alfama", now)

		Convey("Then it starts neutral", func() {
			So(st.ZoneID, ShouldEqual, "alfama")
			So(st.Score, ShouldEqual, model.DefaultScore)
			So(st.Level, ShouldEqual, model.LevelMedium)
			So(st.State, ShouldEqual, model.StateActive)
			So(st.LastUpdatedAt.Equal(now), ShouldBeTrue)
			So(st.HazardActive, ShouldBeFalse)
			So(st.HasConflicts(), ShouldBeFalse)
			So(st.LastIntelAt, ShouldBeNil)
		})
	})
}
