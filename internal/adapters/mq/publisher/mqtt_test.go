package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okian/airsense/internal/adapters/mq/publisher"
	"github.com/okian/airsense/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	token        mqtt.Token
	sent         []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func TestMQTT_Publish(t *testing.T) {
	ctx := context.Background()
	snap := types.Snapshot{Session: "s1", GasKOhm: 81, Metric: types.Metric{Source: "fallback"}}

	Convey("Given a publisher on a healthy connection", t, func() {
		client := &fakeClient{token: newToken(nil, true)}
		p := publisher.New(client, publisher.WithTopic("lab/air"), publisher.WithQoS(1), publisher.WithRetained(true))

		Convey("When a snapshot is published", func() {
			err := p.Publish(ctx, snap)

			Convey("Then it goes out as JSON on the configured topic", func() {
				So(err, ShouldBeNil)
				So(client.sent, ShouldHaveLength, 1)
				So(client.sent[0].topic, ShouldEqual, "lab/air")
				So(client.sent[0].qos, ShouldEqual, 1)
				So(client.sent[0].retained, ShouldBeTrue)

				var got types.Snapshot
				So(json.Unmarshal(client.sent[0].payload, &got), ShouldBeNil)
				So(got.Session, ShouldEqual, "s1")
				So(got.Metric.Source, ShouldEqual, "fallback")
			})
		})

		Convey("When closed", func() {
			So(p.Close(), ShouldBeNil)
			So(client.disconnected, ShouldBeTrue)
		})
	})

	Convey("Given a broker that rejects the message", t, func() {
		client := &fakeClient{token: newToken(errors.New("not authorized"), true)}
		p := publisher.New(client)

		err := p.Publish(ctx, snap)
		So(errors.Is(err, publisher.ErrPublish), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "not authorized")
		So(p.Topic(), ShouldEqual, "airsense/reading")
	})

	Convey("Given a broker that never acknowledges", t, func() {
		client := &fakeClient{token: newToken(nil, false)}
		p := publisher.New(client, publisher.WithTimeout(10*time.Millisecond))

		Convey("Then publish gives up after the timeout", func() {
			err := p.Publish(ctx, snap)
			So(errors.Is(err, publisher.ErrPublish), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "timed out")
		})

		Convey("Then a cancelled context stops the wait", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			p := publisher.New(client, publisher.WithTimeout(time.Hour))
			So(errors.Is(p.Publish(cctx, snap), publisher.ErrPublish), ShouldBeTrue)
		})
	})
}
