package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-labs/screenshot-sherlock/internal/observability/metrics"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

func TestFallbackClientUsesPrimaryFirst(t *testing.T) {
	primary := &stubClient{response: Response{Text: "primary"}}
	fallback := &stubClient{response: Response{Text: "fallback"}}
	c := NewFallbackClient(primary, fallback, nil, logging.Discard().Logger)

	resp, err := c.Complete(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackClientRoutesToFallback(t *testing.T) {
	primary := &stubClient{err: errors.New("quota exceeded")}
	fallback := &stubClient{response: Response{Text: "fallback"}}
	m := metrics.NewAnalysisMetrics(prometheus.NewRegistry())
	c := NewFallbackClient(primary, fallback, m, logging.Discard().Logger)

	resp, err := c.Complete(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackClientReturnsFallbackError(t *testing.T) {
	primary := &stubClient{err: errors.New("primary down")}
	fallback := &stubClient{err: errors.New("fallback down")}
	c := NewFallbackClient(primary, fallback, nil, logging.Discard().Logger)

	_, err := c.Complete(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, "fallback down", err.Error())
}

func TestFallbackClientWithoutFallback(t *testing.T) {
	primary := &stubClient{err: errors.New("primary down")}
	c := NewFallbackClient(primary, nil, nil, nil)

	_, err := c.Complete(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, "primary down", err.Error())
}

func TestFallbackClientSkipsSecondaryAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &stubClient{err: errors.New("primary timed out")}
	fallback := &stubClient{response: Response{Text: "fallback"}}
	c := NewFallbackClient(primary, fallback, nil, logging.Discard().Logger)

	cancel()
	_, err := c.Complete(ctx, Request{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, "primary timed out", err.Error())
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackClientCountsSecondaryOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAnalysisMetrics(reg)
	primary := &stubClient{err: errors.New("primary down")}
	fallback := &stubClient{errs: []error{nil, errors.New("fallback down")}, responses: []Response{{Text: "ok"}, {}}}
	c := NewFallbackClient(primary, fallback, m, logging.Discard().Logger)

	_, err := c.Complete(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{Text: "x"})
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "sherlock_vision_fallback_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			got[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"success": 1, "failure": 1}, got)
}
