package pose

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerRecorder struct {
	mu    sync.Mutex
	calls []handlerCall
}

type handlerCall struct {
	rigID   string
	payload []byte
	set     *ObservationSet
	err     error
}

func (r *handlerRecorder) handle(rigID string, payload []byte, set *ObservationSet, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, handlerCall{rigID, payload, set, err})
}

func (r *handlerRecorder) all() []handlerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]handlerCall(nil), r.calls...)
}

func twoRigConfig() *Config {
	return &Config{
		Rigs: []RigConfig{
			{
				ID:    "rover",
				Topic: "sensors/rover/observations",
				Cameras: []CameraConfig{
					{ID: "front", Fx: 500, Fy: 500, Ppx: 320, Ppy: 240},
				},
			},
			{
				ID: "untopiced",
				Cameras: []CameraConfig{
					{ID: "front", Fx: 500, Fy: 500},
				},
			},
		},
	}
}

func TestOnConnectSubscribesRigTopics(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	recorder := &handlerRecorder{}
	c := newClientWithMock(mock, twoRigConfig(), recorder.handle)

	c.onConnect(mock)

	assert.True(t, c.IsConnected())

	// The topic-less rig is skipped; only the configured topic is routed.
	mock.SimulateMessage("sensors/rover/observations", []byte(sampleObservationJSON))

	calls := recorder.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "rover", calls[0].rigID)
	require.NoError(t, calls[0].err)
	require.NotNil(t, calls[0].set)
	assert.Len(t, calls[0].set.Observations, 2)
}

func TestObservationHandlerDecodesCompressedPayload(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	recorder := &handlerRecorder{}
	c := newClientWithMock(mock, twoRigConfig(), recorder.handle)
	c.onConnect(mock)

	compressed := deflate(t, []byte(sampleObservationJSON))
	mock.SimulateMessage("sensors/rover/observations", compressed)

	calls := recorder.all()
	require.Len(t, calls, 1)
	require.NoError(t, calls[0].err)
	assert.Equal(t, "rig-1", calls[0].set.RigID)
	assert.Equal(t, compressed, calls[0].payload)
}

func TestObservationHandlerReportsDecodeError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	recorder := &handlerRecorder{}
	c := newClientWithMock(mock, twoRigConfig(), recorder.handle)
	c.onConnect(mock)

	garbage := []byte{0x00, 0xff, 0x13}
	mock.SimulateMessage("sensors/rover/observations", garbage)

	calls := recorder.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "rover", calls[0].rigID)
	assert.Error(t, calls[0].err)
	assert.Nil(t, calls[0].set)
	assert.Equal(t, garbage, calls[0].payload)
}

func TestClientConnectionState(t *testing.T) {
	mock := NewMockClient()
	c := newClientWithMock(mock, twoRigConfig(), nil)

	assert.False(t, c.IsConnected())
	c.setConnected(true)
	assert.True(t, c.IsConnected())

	mock.SetConnected(true)
	c.Disconnect()
	assert.False(t, c.IsConnected())
}

func TestInitMQTTDisabledWithoutBroker(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	c, err := InitMQTT(&Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestInitMQTTRequiresRigs(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	config := &Config{MQTT: MQTTConfig{Broker: "tcp://localhost:1883"}}
	_, err := InitMQTT(config, nil)
	assert.Error(t, err)
}
