package ctl_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/airsense/internal/adapters/http/api"
	app "github.com/okian/airsense/internal/app"
	"github.com/okian/airsense/internal/ctl"
	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func startServer(ctx context.Context, interval time.Duration) (*httptest.Server, func()) {
	svc := app.New(
		app.WithLogger(logger.Discard()),
		app.WithSampleInterval(interval),
	)
	So(svc.Start(ctx), ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(svc, api.WithLogger(logger.Discard())).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

func waitForReading(ctx context.Context, client *ctl.Client) types.Snapshot {
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := client.Reading(ctx)
		if err == nil || time.Now().After(deadline) {
			So(err, ShouldBeNil)
			return snap
		}
		So(errors.Is(err, ctl.ErrNoReading), ShouldBeTrue)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		srv, stop := startServer(ctx, time.Hour)
		defer stop()

		cfg := &ctl.Config{BaseURL: srv.URL + "/", Timeout: time.Second, MinVendorConfidence: 2}
		client := ctl.NewClient(cfg)

		Convey("When the first reading is fetched", func() {
			snap := waitForReading(ctx, client)

			Convey("Then it is consistent and still building a baseline", func() {
				So(ctl.Verify(snap, cfg.MinVendorConfidence), ShouldBeNil)
				So(snap.Metric.Source, ShouldEqual, "unavailable")
				So(snap.Session, ShouldNotBeEmpty)
			})
		})

		Convey("When commands are sent", func() {
			refresh, err := client.Refresh(ctx)
			So(err, ShouldBeNil)
			reinit, err := client.Reinit(ctx)
			So(err, ShouldBeNil)

			Convey("Then both are acknowledged", func() {
				So(refresh.Command, ShouldEqual, "refresh")
				So(reinit.Command, ShouldEqual, "reinitialize")
			})
		})

		Convey("When stats are fetched", func() {
			stats, err := client.Stats(ctx)
			So(err, ShouldBeNil)

			Convey("Then the service counters are present", func() {
				So(stats, ShouldContainKey, "cycles")
				So(stats, ShouldContainKey, "session")
			})
		})

		Convey("When an unknown path is requested", func() {
			bad := ctl.NewClient(&ctl.Config{BaseURL: srv.URL + "/nope"})
			_, err := bad.Stats(ctx)

			Convey("Then the status is reported", func() {
				So(errors.Is(err, ctl.ErrUnexpected), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "404")
			})
		})
	})
}

func TestRunner(t *testing.T) {
	Convey("Given a service sampling quickly", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		srv, stop := startServer(ctx, 10*time.Millisecond)
		defer stop()

		var out bytes.Buffer
		cfg := &ctl.Config{BaseURL: srv.URL, Timeout: time.Second, MinVendorConfidence: 2}
		runner := ctl.NewRunner(cfg, &out, nil)

		Convey("When the stream is checked for three snapshots", func() {
			cfg.Count = 3
			err := runner.Run(ctx, "check")

			Convey("Then every line is printed and passes", func() {
				So(err, ShouldBeNil)
				So(strings.Count(out.String(), "\n"), ShouldEqual, 3)
				So(out.String(), ShouldContainSubstring, "unavailable")
			})
		})

		Convey("When the reading is printed", func() {
			waitForReading(ctx, ctl.NewClient(cfg))
			So(runner.Run(ctx, "reading"), ShouldBeNil)

			Convey("Then it is indented JSON", func() {
				So(out.String(), ShouldStartWith, "{\n")
				So(out.String(), ShouldContainSubstring, `"metric"`)
			})
		})

		Convey("When an unknown command is given", func() {
			err := runner.Run(ctx, "dance")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ctl.ErrUnknownCommand), ShouldBeTrue)
			})
		})
	})
}
