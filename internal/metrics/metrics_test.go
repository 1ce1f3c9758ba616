package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.ConnectedUsers.Inc()
	r.ConnectedUsers.Inc()
	r.ConnectedUsers.Dec()
	r.Commands.WithLabelValues("UP").Inc()
	r.Rejected.WithLabelValues(ReasonParse).Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.ConnectedUsers))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Commands.WithLabelValues("UP")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.Rejected.WithLabelValues(ReasonParse)))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Broadcasts.Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "updown_broadcasts_total 1")
	assert.Contains(t, string(body), "updown_connected_users 0")
}
