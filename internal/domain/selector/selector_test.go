package selector_test

import (
	"testing"

	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/selector"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSelector_Select(t *testing.T) {
	Convey("Given a selector with the default threshold", t, func() {
		sel := selector.New()
		fb := model.FallbackIndex{Value: 12.5, Label: model.LabelElevated, Available: true}

		Convey("When the vendor estimate is missing", func() {
			m := sel.Select(nil, fb)

			Convey("Then the fallback is selected", func() {
				So(m.Kind, ShouldEqual, model.MetricFallback)
				So(m.Value, ShouldEqual, 12.5)
				So(m.Label, ShouldEqual, model.LabelElevated)
			})
		})

		Convey("When vendor confidence is below the threshold", func() {
			m := sel.Select(&model.VendorEstimate{Index: 80, Confidence: 1}, fb)
			So(m.Kind, ShouldEqual, model.MetricFallback)
		})

		Convey("When vendor confidence reaches the threshold", func() {
			m := sel.Select(&model.VendorEstimate{Index: 80, Confidence: 2}, fb)

			Convey("Then the vendor index is selected", func() {
				So(m.Kind, ShouldEqual, model.MetricVendor)
				So(m.Value, ShouldEqual, 80)
				So(m.Confidence, ShouldEqual, 2)
			})
		})

		Convey("When confidence drops on a later cycle", func() {
			first := sel.Select(&model.VendorEstimate{Index: 80, Confidence: 3}, fb)
			second := sel.Select(&model.VendorEstimate{Index: 81, Confidence: 1}, fb)

			Convey("Then the selection reverts immediately", func() {
				So(first.Kind, ShouldEqual, model.MetricVendor)
				So(second.Kind, ShouldEqual, model.MetricFallback)
			})
		})

		Convey("When neither source has a value", func() {
			m := sel.Select(&model.VendorEstimate{Confidence: 0}, model.UnavailableFallback())

			Convey("Then the metric is unavailable and labelled as building", func() {
				So(m.Available(), ShouldBeFalse)
				So(m.Label, ShouldEqual, model.LabelBuilding)
			})
		})
	})

	Convey("Given a selector with a custom threshold", t, func() {
		sel := selector.New(selector.WithMinConfidence(3))
		So(sel.MinConfidence(), ShouldEqual, 3)
		m := sel.Select(&model.VendorEstimate{Index: 50, Confidence: 2}, model.UnavailableFallback())
		So(m.Kind, ShouldEqual, model.MetricUnavailable)
	})
}
