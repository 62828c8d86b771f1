package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveGenerate("class", "success", 1200*time.Millisecond)
	r.ObserveGenerate("class", "auth_error", 10*time.Millisecond)
	r.ObserveExport("svg", "success", 300*time.Millisecond, 4096)
	r.ObserveExport("png", "render_process_error", time.Second, 0)
	r.IncCache(true)
	r.IncCache(false)
	r.IncCache(false)

	assert.Equal(t, 1.0, counterValue(t, reg, "code2diagram_generate_requests_total", "result", "success"))
	assert.Equal(t, 1.0, counterValue(t, reg, "code2diagram_generate_requests_total", "result", "auth_error"))
	assert.Equal(t, 1.0, counterValue(t, reg, "code2diagram_export_requests_total", "result", "render_process_error"))
	assert.Equal(t, 2.0, counterValue(t, reg, "code2diagram_diagram_cache_lookups_total", "outcome", "miss"))
}

// counterValue returns the counter in family name whose label matches value.
func counterValue(t *testing.T, reg *prom.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveGenerate("class", "success", time.Second)
	r.ObserveExport("svg", "success", time.Second, 10)
	r.IncCache(true)
	assert.Nil(t, r.Registry())
	assert.NotNil(t, r.HTTPHandler())
}

func TestRecorder_HTTPHandler(t *testing.T) {
	r := NewRecorder(nil)
	r.ObserveExport("pdf", "success", 2*time.Second, 20000)

	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `code2diagram_export_requests_total{format="pdf",result="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
