package flightlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtu-nova/nova-letter/trajectory"
)

type fakeClient struct {
	mqtt.Client
	topics   []string
	payloads [][]byte
	err      error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return fakeToken{err: c.err}
}

type fakeToken struct {
	mqtt.Token
	err error
}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                 { return t.err }

type failingSink struct{}

func (failingSink) Publish(Frame) error { return errors.New("broker gone") }

func TestRecorderSave(t *testing.T) {
	r := NewRecorder()
	at := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	r.Record(0, trajectory.Waypoint{X: 1, Y: 2, Z: 0.6}, at)
	r.Record(1, trajectory.Waypoint{X: 1.5, Y: 2, Z: 0.6}, at.Add(100*time.Millisecond))

	frames := r.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, float64(at.Unix()*1000), frames[0].Time)
	assert.Equal(t, float64(at.Unix()*1000+100), frames[1].Time)

	dir := filepath.Join(t.TempDir(), "logs")
	path, err := r.Save(dir, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vicon_14_05_09_03_07_2024.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Frames []Frame `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, frames, doc.Frames)
}

func TestSaveEmpty(t *testing.T) {
	path, err := NewRecorder().Save(t.TempDir(), time.Now())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frames": []}`, string(data))
}

func TestSinks(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, "cf1", "trajectory")
	assert.Equal(t, "/devices/cf1/events/trajectory", pub.Topic())

	var sinkErrs []error
	r := NewRecorder(pub, failingSink{})
	r.OnSinkError(func(err error) { sinkErrs = append(sinkErrs, err) })
	r.Record(7, trajectory.Waypoint{X: 1, Y: 2, Z: 3}, time.Unix(1, 0))

	require.Len(t, client.payloads, 1)
	assert.Len(t, sinkErrs, 1)
	assert.Len(t, r.Frames(), 1)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(client.payloads[0], &msg))
	assert.Equal(t, "cf1", msg["device"])
	assert.Equal(t, float64(7), msg["frame_id"])
	assert.Equal(t, float64(1000), msg["time"])
	assert.NotEmpty(t, msg["message_id"])
}

func TestPublishBrokerError(t *testing.T) {
	client := &fakeClient{err: errors.New("not authorized")}
	pub := NewPublisher(client, "cf1", "trajectory")

	var sinkErrs []error
	r := NewRecorder(pub)
	r.OnSinkError(func(err error) { sinkErrs = append(sinkErrs, err) })

	id := 0
	require.Eventually(t, func() bool {
		r.Record(id, trajectory.Waypoint{}, time.Now())
		id++
		return len(sinkErrs) > 0
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, sinkErrs[0].Error(), "not authorized")
	assert.Len(t, r.Frames(), id)
}
