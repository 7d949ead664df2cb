package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/airsense/internal/adapters/mq/worker"
	"github.com/okian/airsense/internal/domain/types"
	logging "github.com/okian/airsense/pkg/logger"
	"github.com/okian/airsense/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

type mockSink struct {
	mu       sync.Mutex
	sessions []string
	err      error
	block    chan struct{}
}

func (m *mockSink) Publish(ctx context.Context, s types.Snapshot) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s.Session)
	return m.err
}

func (m *mockSink) got() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sessions...)
}

func snap(id string) types.Snapshot { return types.Snapshot{Session: id} }

func publisherErrors() float64 {
	families, err := metrics.GetRegistry().Gather()
	convey.So(err, convey.ShouldBeNil)
	for _, f := range families {
		if f.GetName() != "airsense_pipeline_errors_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["component"] == "publisher" && labels["type"] == "publish" {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		sink := &mockSink{}
		w := worker.NewInMemoryWorker(sink, worker.WithName("mqtt"), worker.WithLogger(logging.Discard()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When snapshots are offered", func() {
			w.Offer(snap("a"))
			w.Offer(snap("b"))

			convey.Convey("Then they are published in order", func() {
				deadline := time.Now().Add(time.Second)
				for len(sink.got()) < 2 && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				convey.So(sink.got(), convey.ShouldResemble, []string{"a", "b"})
				convey.So(w.Stats()["sent"], convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When shut down", func() {
			sdctx, sdcancel := context.WithTimeout(context.Background(), time.Second)
			defer sdcancel()
			convey.So(w.Shutdown(sdctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sdctx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker that is not running yet", t, func() {
		sink := &mockSink{}
		w := worker.NewInMemoryWorker(sink, worker.WithBuffer(2), worker.WithLogger(logging.Discard()))

		convey.Convey("When more snapshots arrive than the buffer holds", func() {
			w.Offer(snap("1"))
			w.Offer(snap("2"))
			w.Offer(snap("3"))

			convey.Convey("Then the oldest are dropped and the rest flushed on shutdown", func() {
				convey.So(w.Stats()["dropped"], convey.ShouldEqual, 1)
				convey.So(w.Stats()["pending"], convey.ShouldEqual, 2)

				ctx := context.Background()
				go w.Run(ctx)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(sink.got(), convey.ShouldResemble, []string{"2", "3"})
			})
		})
	})

	convey.Convey("Given a failing sink", t, func() {
		sink := &mockSink{err: errors.New("broker down")}
		w := worker.NewInMemoryWorker(sink, worker.WithLogger(logging.Discard()))
		before := publisherErrors()
		w.Offer(snap("x"))
		w.Offer(snap("y"))

		ctx := context.Background()
		go w.Run(ctx)
		convey.So(w.Shutdown(ctx), convey.ShouldBeNil)

		convey.Convey("Then every failure is counted, including the first", func() {
			convey.So(w.Stats()["failed"], convey.ShouldEqual, 2)
			convey.So(publisherErrors(), convey.ShouldEqual, before+2)
		})
	})

	convey.Convey("Given a sink that hangs", t, func() {
		sink := &mockSink{block: make(chan struct{})}
		w := worker.NewInMemoryWorker(sink, worker.WithLogger(logging.Discard()))
		runCtx, cancelRun := context.WithCancel(context.Background())
		defer cancelRun()
		w.Offer(snap("x"))
		go w.Run(runCtx)

		convey.Convey("Then shutdown gives up at its deadline", func() {
			time.Sleep(10 * time.Millisecond)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			convey.So(w.Shutdown(ctx), convey.ShouldNotBeNil)
			close(sink.block)
		})
	})
}
