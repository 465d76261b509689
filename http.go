package preemption

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpresponse "github.com/yudhasubki/preemption/pkg/http"
)

type Http struct {
	Control *Control
}

func (h *Http) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/status", h.Status)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Http) Status(w http.ResponseWriter, r *http.Request) {
	if h.Control == nil {
		httpresponse.Write(w, http.StatusServiceUnavailable, &httpresponse.Response{
			Error:   httpresponse.MessageNoControl,
			Message: httpresponse.MessageFailure,
		})
		return
	}

	httpresponse.Write(w, http.StatusOK, &httpresponse.Response{
		Message: httpresponse.MessageSuccess,
		Data:    h.Control.Status(),
	})
}
