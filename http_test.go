package preemption

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	httpresponse "github.com/yudhasubki/preemption/pkg/http"
)

func TestHttpStatus(t *testing.T) {
	control := New()
	router := (&Http{Control: control}).Router()

	guard := control.Disable()
	defer guard.Release()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Message string `json:"message"`
		Data    Status `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Equal(t, httpresponse.MessageSuccess, response.Message)
	require.True(t, response.Data.Locked)
	require.Equal(t, guard.ID().String(), response.Data.Holder.String)
}

func TestHttpStatusWithoutControl(t *testing.T) {
	router := (&Http{}).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHttpMetrics(t *testing.T) {
	control := New()
	control.Disable().Release()

	router := (&Http{Control: control}).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "preemption_guard_acquisitions_total"))
}
