package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errClock = errors.New("clock moved backwards")

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate() (idgen.ID, error) {
	if g.err != nil {
		return 0, g.err
	}

	return 42, nil
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestInstrument(t *testing.T) {
	t.Run("counts generated ids", func(t *testing.T) {
		m := metrics.New()
		gen := metrics.Instrument(&stubGenerator{}, m)

		id, err := gen.Generate()
		require.NoError(t, err)
		assert.Equal(t, idgen.ID(42), id)

		_, _ = gen.Generate()

		assert.Contains(t, scrape(t, m), "shortlinks_ids_generated_total 2")
	})

	t.Run("counts refusals and passes the error through", func(t *testing.T) {
		m := metrics.New()
		gen := metrics.Instrument(&stubGenerator{err: errClock}, m)

		_, err := gen.Generate()

		require.ErrorIs(t, err, errClock)
		assert.Contains(t, scrape(t, m), "shortlinks_id_generation_failures_total 1")
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.LinkEvent(metrics.LinkCreated)
	m.LinkEvent(metrics.LinkCreated)
	m.LinkEvents(metrics.LinkDeleted, 3)
	m.TokenRejected()
	m.CredentialRejected()
	m.ClockStalled(1500 * time.Millisecond)

	body := scrape(t, m)

	assert.Contains(t, body, `shortlinks_link_events_total{event="created"} 2`)
	assert.Contains(t, body, `shortlinks_link_events_total{event="deleted"} 3`)
	assert.Contains(t, body, "shortlinks_token_rejections_total 1")
	assert.Contains(t, body, "shortlinks_credential_rejections_total 1")
	assert.Contains(t, body, "shortlinks_id_clock_stall_seconds_count 1")
	assert.Contains(t, body, "shortlinks_id_clock_stall_seconds_sum 1.5")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() == "shortlinks_link_events_total" {
			assert.Len(t, f.GetMetric(), 2)
		}
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.LinkEvent(metrics.LinkCreated)
		m.LinkEvents(metrics.LinkDeleted, 2)
		m.TokenRejected()
		m.CredentialRejected()
		m.ClockStalled(time.Second)

		_, _ = metrics.Instrument(&stubGenerator{}, m).Generate()
	})
}

func TestMetrics_Handler(t *testing.T) {
	body := scrape(t, metrics.New())

	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collectors are registered")
}
