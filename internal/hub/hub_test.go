package hub

import (
	"sync"
	"testing"

	"github.com/eternalApril/updown/internal/metrics"
	"github.com/eternalApril/updown/internal/resplite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu       sync.Mutex
	payloads []string
	full     bool
}

func (r *recorder) Deliver(payload string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.payloads = append(r.payloads, payload)
	return true
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func TestHub_JoinLeaveAnnounces(t *testing.T) {
	m := metrics.NewRegistry()
	h := New(zaptest.NewLogger(t), m)
	a, b := &recorder{}, &recorder{}

	assert.Equal(t, int64(1), h.Join(a))
	assert.Equal(t, int64(2), h.Join(b))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ConnectedUsers))

	assert.Equal(t, []string{
		"*2\r\n+INFO\r\n:1\r\n",
		"*2\r\n+INFO\r\n:2\r\n",
	}, a.got())
	assert.Equal(t, []string{"*2\r\n+INFO\r\n:2\r\n"}, b.got())

	assert.Equal(t, int64(1), h.Leave(b))
	assert.Equal(t, "*2\r\n+INFO\r\n:1\r\n", a.got()[2])

	// last one out hears nothing
	assert.Equal(t, int64(0), h.Leave(a))
	assert.Len(t, a.got(), 3)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ConnectedUsers))
}

func TestHub_LeaveUnknown(t *testing.T) {
	h := New(zaptest.NewLogger(t), nil)
	a := &recorder{}
	h.Join(a)

	assert.Equal(t, int64(1), h.Leave(&recorder{}))
	assert.Len(t, a.got(), 1)
}

func TestHub_PublishSkipsSender(t *testing.T) {
	h := New(zaptest.NewLogger(t), nil)
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	h.Join(a)
	h.Join(b)
	h.Join(c)

	n := h.Publish("*2\r\n+down\r\n:5\r\n", a)
	assert.Equal(t, 2, n)

	assert.NotContains(t, a.got(), "*2\r\n+down\r\n:5\r\n")
	assert.Contains(t, b.got(), "*2\r\n+down\r\n:5\r\n")
	assert.Contains(t, c.got(), "*2\r\n+down\r\n:5\r\n")

	n = h.Publish("+all\r\n", nil)
	assert.Equal(t, 3, n)
	assert.Contains(t, a.got(), "+all\r\n")
}

func TestHub_PublishCountsDrops(t *testing.T) {
	m := metrics.NewRegistry()
	h := New(zaptest.NewLogger(t), m)
	slow := &recorder{}
	h.Join(slow)
	h.Join(&recorder{})

	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	assert.Equal(t, 1, h.Publish("+x\r\n", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Broadcasts))
}

func TestHub_PublishValue(t *testing.T) {
	h := New(zaptest.NewLogger(t), nil)
	a := &recorder{}
	h.Join(a)

	n, err := h.PublishValue(resplite.MakeArray(resplite.MakeSimpleString("up"), resplite.MakeInteger(3)), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "*2\r\n+up\r\n:3\r\n", a.got()[1])

	_, err = h.PublishValue(resplite.MakeInteger(-1), nil)
	assert.ErrorIs(t, err, resplite.ErrEncode)
}

func TestHub_Concurrent(t *testing.T) {
	h := New(zaptest.NewLogger(t), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &recorder{}
			h.Join(r)
			h.Publish("+ping\r\n", r)
			h.Leave(r)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), h.Connected())
}
