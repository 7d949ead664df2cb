package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/airsense/internal/domain/baseline"
	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/pipeline"
	"github.com/okian/airsense/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSnapshot(t *testing.T) {
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	Convey("Given a result from before the baseline exists", t, func() {
		res := pipeline.Result{
			At:       at,
			Raw:      model.RawReading{ReadDuration: 12 * time.Millisecond},
			Reading:  model.CanonicalReading{Temperature: 21, Humidity: 40, PressureHPa: 1000, GasKOhm: 80, AltitudeM: 110},
			Fallback: model.UnavailableFallback(),
			Metric:   model.UnavailableMetric(),
		}

		s := types.NewSnapshot("sess", res)

		Convey("Then values that do not exist yet are null, not zero", func() {
			So(s.Metric.Source, ShouldEqual, "unavailable")
			So(s.Metric.Value, ShouldBeNil)
			So(s.Metric.Label, ShouldEqual, "building")
			So(s.Fallback.Value, ShouldBeNil)
			So(s.Fallback.Label, ShouldEqual, "building")
			So(s.Baseline.BaselineKOhm, ShouldBeNil)
			So(s.Vendor, ShouldBeNil)
			So(s.ReadMS, ShouldEqual, 12)

			b, err := json.Marshal(s)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"fallback":{"value":null,"label":"building"}`)
		})
	})

	Convey("Given a result where the vendor is selected", t, func() {
		vendor := &model.VendorEstimate{Index: 61, Confidence: 3, CO2Equivalent: 640, BreathVOCEquivalent: 0.9}
		res := pipeline.Result{
			At:       at,
			Vendor:   vendor,
			Fallback: model.FallbackIndex{Value: 0, Label: model.LabelExcellent, Available: true},
			Baseline: baseline.State{Established: true, BaselineKOhm: 100, WindowMinKOhm: 97},
			Metric:   model.VendorMetric(61, 3),
		}

		s := types.NewSnapshot("sess", res)

		Convey("Then the metric carries the vendor value and confidence", func() {
			So(s.Metric.Source, ShouldEqual, "vendor")
			So(*s.Metric.Value, ShouldEqual, 61)
			So(*s.Metric.Confidence, ShouldEqual, 3)
			So(s.Metric.Label, ShouldEqual, "")
		})

		Convey("And a zero fallback index is reported as zero, not null", func() {
			So(s.Fallback.Value, ShouldNotBeNil)
			So(*s.Fallback.Value, ShouldEqual, 0)
		})

		Convey("And the vendor extras and baseline are present", func() {
			So(s.Vendor.CO2Equivalent, ShouldEqual, 640)
			So(*s.Baseline.BaselineKOhm, ShouldEqual, 100)
			So(*s.Baseline.WindowMinKOhm, ShouldEqual, 97)
		})
	})
}
