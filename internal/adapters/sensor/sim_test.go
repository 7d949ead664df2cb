package sensor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/airsense/internal/adapters/sensor"
	"github.com/okian/airsense/internal/domain/units"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	_ sensor.Source        = (*sensor.Sim)(nil)
	_ sensor.Estimator     = (*sensor.Sim)(nil)
	_ sensor.Reinitializer = (*sensor.Sim)(nil)
	_ sensor.Source        = (*sensor.I2C)(nil)
	_ sensor.Reinitializer = (*sensor.I2C)(nil)
)

func sample(s *sensor.Sim, n int) {
	for i := 0; i < n; i++ {
		_, _ = s.Sample(context.Background())
	}
}

func TestSim_Sample(t *testing.T) {
	ctx := context.Background()

	Convey("Given two simulators with the same seed", t, func() {
		a := sensor.NewSim(sensor.WithSeed(7))
		b := sensor.NewSim(sensor.WithSeed(7))

		Convey("Then they produce the same readings", func() {
			for i := 0; i < 10; i++ {
				ra, err := a.Sample(ctx)
				So(err, ShouldBeNil)
				rb, _ := b.Sample(ctx)
				So(ra.RawGasResistance, ShouldEqual, rb.RawGasResistance)
				So(ra.Temperature, ShouldEqual, rb.Temperature)
			}
		})
	})

	Convey("Given the default simulator", t, func() {
		s := sensor.NewSim()
		r, err := s.Sample(ctx)

		Convey("Then pressure is reported in pascals", func() {
			So(err, ShouldBeNil)
			So(r.RawPressure, ShouldBeGreaterThan, units.PascalThreshold)
			So(r.RawGasResistance, ShouldBeGreaterThan, 1000)
			So(r.Vendor, ShouldNotBeNil)
			So(r.Vendor.Confidence, ShouldEqual, 0)
		})
	})

	Convey("Given a simulator reporting hectopascals", t, func() {
		s := sensor.NewSim(sensor.WithPressureInHPa())
		r, _ := s.Sample(ctx)
		So(r.RawPressure, ShouldBeLessThanOrEqualTo, units.PascalThreshold)
		So(units.PressureHPa(r.RawPressure), ShouldEqual, r.RawPressure)
	})

	Convey("Given a simulator without a vendor estimator", t, func() {
		s := sensor.NewSim(sensor.WithoutVendor())
		r, _ := s.Sample(ctx)
		So(r.Vendor, ShouldBeNil)
	})

	Convey("Given a simulator that fails every third sample", t, func() {
		s := sensor.NewSim(sensor.WithFailureEvery(3))
		var errs int
		for i := 0; i < 9; i++ {
			if _, err := s.Sample(ctx); err != nil {
				So(errors.Is(err, sensor.ErrReadFailed), ShouldBeTrue)
				errs++
			}
		}
		So(errs, ShouldEqual, 3)
	})

	Convey("Given a slow simulator and a cancelled context", t, func() {
		s := sensor.NewSim(sensor.WithReadDelay(time.Hour))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Sample(cctx)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})

	Convey("Given a closed simulator", t, func() {
		s := sensor.NewSim()
		So(s.Close(), ShouldBeNil)
		_, err := s.Sample(ctx)
		So(errors.Is(err, sensor.ErrReadFailed), ShouldBeTrue)
	})
}

func TestSim_Estimator(t *testing.T) {
	ctx := context.Background()

	Convey("Given a simulator with a flat gas profile", t, func() {
		s := sensor.NewSim(sensor.WithGasProfile(func(int) float64 { return 100000 }))

		Convey("Then vendor confidence rises with the samples seen", func() {
			var conf []uint8
			for i := 0; i < 60; i++ {
				r, err := s.Sample(ctx)
				So(err, ShouldBeNil)
				conf = append(conf, r.Vendor.Confidence)
			}
			So(conf[0], ShouldEqual, 0)
			So(conf[5], ShouldEqual, 1)
			So(conf[23], ShouldEqual, 2)
			So(conf[59], ShouldEqual, 3)
		})

		Convey("When its state is restored into a fresh simulator", func() {
			sample(s, 60)
			blob, err := s.State()
			So(err, ShouldBeNil)

			other := sensor.NewSim()
			So(other.SetState(blob), ShouldBeNil)

			Convey("Then the restored estimator is already calibrated", func() {
				r, _ := other.Sample(ctx)
				So(r.Vendor.Confidence, ShouldEqual, 3)
			})
		})

		Convey("When reinitialised", func() {
			sample(s, 60)
			So(s.Reinit(ctx), ShouldBeNil)
			So(s.Reinits(), ShouldEqual, 1)

			Convey("Then the estimator starts over", func() {
				r, _ := s.Sample(ctx)
				So(r.Vendor.Confidence, ShouldEqual, 0)
			})
		})
	})

	Convey("Corrupt state is rejected", t, func() {
		s := sensor.NewSim()
		So(errors.Is(s.SetState([]byte("{")), sensor.ErrBadState), ShouldBeTrue)
		So(errors.Is(s.SetState([]byte(`{"version":9}`)), sensor.ErrBadState), ShouldBeTrue)
	})
}
