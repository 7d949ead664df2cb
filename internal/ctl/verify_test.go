package ctl_test

import (
	"errors"
	"testing"

	"github.com/okian/airsense/internal/ctl"
	"github.com/okian/airsense/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func f(v float64) *float64 { return &v }
func c(v uint8) *uint8     { return &v }

func established() types.Baseline {
	return types.Baseline{Established: true, BaselineKOhm: f(100), WindowMinKOhm: f(90)}
}

func TestVerify(t *testing.T) {
	Convey("Given consistent snapshots", t, func() {
		cases := map[string]types.Snapshot{
			"building": {
				Metric:   types.Metric{Source: "unavailable", Label: "building"},
				Fallback: types.Fallback{Label: "building"},
			},
			"fallback": {
				Metric:   types.Metric{Source: "fallback", Value: f(12), Label: "elevated"},
				Fallback: types.Fallback{Value: f(12), Label: "elevated"},
				Baseline: established(),
			},
			"vendor": {
				Metric:   types.Metric{Source: "vendor", Value: f(87), Confidence: c(2)},
				Fallback: types.Fallback{Value: f(0), Label: "excellent"},
				Vendor:   &types.Vendor{Index: 87, Confidence: 2},
				Baseline: established(),
			},
			"low-confidence vendor with fallback": {
				Metric:   types.Metric{Source: "fallback", Value: f(1), Label: "excellent"},
				Fallback: types.Fallback{Value: f(1), Label: "excellent"},
				Vendor:   &types.Vendor{Index: 25, Confidence: 1},
				Baseline: established(),
			},
		}
		for name, s := range cases {
			Convey("Then "+name+" passes", func() {
				So(ctl.Verify(s, 2), ShouldBeNil)
			})
		}
	})

	Convey("Given inconsistent snapshots", t, func() {
		cases := map[string]types.Snapshot{
			"unavailable with a value": {
				Metric:   types.Metric{Source: "unavailable", Value: f(3)},
				Fallback: types.Fallback{Label: "building"},
			},
			"wrong fallback label": {
				Metric:   types.Metric{Source: "fallback", Value: f(30), Label: "elevated"},
				Fallback: types.Fallback{Value: f(30), Label: "elevated"},
				Baseline: established(),
			},
			"vendor below threshold": {
				Metric:   types.Metric{Source: "vendor", Value: f(50), Confidence: c(1)},
				Fallback: types.Fallback{Label: "building"},
				Vendor:   &types.Vendor{Index: 50, Confidence: 1},
			},
			"fallback chosen over a qualified vendor": {
				Metric:   types.Metric{Source: "fallback", Value: f(5), Label: "normal"},
				Fallback: types.Fallback{Value: f(5), Label: "normal"},
				Vendor:   &types.Vendor{Index: 40, Confidence: 3},
				Baseline: established(),
			},
			"baseline value before establishment": {
				Metric:   types.Metric{Source: "unavailable", Label: "building"},
				Fallback: types.Fallback{Label: "building"},
				Baseline: types.Baseline{BaselineKOhm: f(100)},
			},
			"unknown source": {
				Metric:   types.Metric{Source: "guess"},
				Fallback: types.Fallback{Label: "building"},
			},
		}
		for name, s := range cases {
			Convey("Then "+name+" is reported", func() {
				So(errors.Is(ctl.Verify(s, 2), ctl.ErrInconsistent), ShouldBeTrue)
			})
		}
	})
}
