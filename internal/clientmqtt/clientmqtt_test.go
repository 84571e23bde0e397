package clientmqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dmxout/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRange = errors.New("out of range")

type fakeSetter struct {
	values map[uint32]uint8
}

func (f *fakeSetter) SetChannel(channel uint32, value uint8) error {
	if channel < 1 || channel > 512 {
		return errRange
	}
	f.values[channel] = value
	return nil
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

type fakeToken struct {
	mqtt.Token
	done chan struct{}
}

func newDoneToken() *fakeToken {
	t := &fakeToken{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return nil }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	connected bool

	mu        sync.Mutex
	published []published
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, payload.([]byte)})
	return newDoneToken()
}

func newTestClient(t *testing.T) (*ClientMQTT, *fakeSetter) {
	t.Helper()
	l, _ := test.NewNullLogger()
	setter := &fakeSetter{values: map[uint32]uint8{}}
	return NewClient(logger.Wrap(l), MQTTConf{TopicPrefix: "stage"}, setter), setter
}

func TestApply(t *testing.T) {
	c, setter := newTestClient(t)

	n, err := c.apply([]byte(`[{"Channel":1,"Value":255},{"Channel":512,"Value":7}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[uint32]uint8{1: 255, 512: 7}, setter.values)
}

func TestApplySkipsInvalidChannels(t *testing.T) {
	c, setter := newTestClient(t)

	n, err := c.apply([]byte(`[{"Channel":0,"Value":1},{"Channel":3,"Value":3},{"Channel":600,"Value":1}]`))
	assert.ErrorIs(t, err, errRange)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[uint32]uint8{3: 3}, setter.values)
}

func TestApplyBadPayload(t *testing.T) {
	c, setter := newTestClient(t)

	_, err := c.apply([]byte(`{"Channel":`))
	assert.Error(t, err)
	assert.Empty(t, setter.values)
}

func TestMessageHandlerFiltersTopic(t *testing.T) {
	c, setter := newTestClient(t)

	c.messageHandler(nil, &fakeMessage{topic: "other/set", payload: []byte(`[{"Channel":1,"Value":1}]`)})
	assert.Empty(t, setter.values)

	c.messageHandler(nil, &fakeMessage{topic: "stage/set", payload: []byte(`[{"Channel":2,"Value":9}]`)})
	assert.Equal(t, map[uint32]uint8{2: 9}, setter.values)
}

func TestPublishChannel(t *testing.T) {
	c, _ := newTestClient(t)

	// no client yet
	c.PublishChannel(1, 1)

	fc := &fakeClient{}
	c.client = fc
	c.PublishChannel(1, 1)
	assert.Empty(t, fc.published)

	fc.connected = true
	c.PublishChannel(42, 200)
	require.Len(t, fc.published, 1)
	assert.Equal(t, "stage/state", fc.published[0].topic)

	var cmd DMXCommand
	require.NoError(t, json.Unmarshal(fc.published[0].payload, &cmd))
	assert.Equal(t, DMXCommand{Channel: 42, Value: 200}, cmd)
}
