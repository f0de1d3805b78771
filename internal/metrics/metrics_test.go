package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveAndScrape(t *testing.T) {
	reg, promReg := New()
	reg.Observe("/getSpec", time.Now().Add(-5*time.Millisecond), "")
	reg.Observe("/getSpec", time.Now(), "NotFound")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler(promReg).ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "spectro_requests_total")
	require.Contains(t, rec.Body.String(), "spectro_errors_total")
}
