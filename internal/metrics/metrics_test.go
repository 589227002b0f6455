package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with defaults", func() {
			m := NewManager()

			Convey("Then it owns a private registry", func() {
				So(m, ShouldNotBeNil)
				So(m.Registry(), ShouldNotBeNil)
				So(m.Registry(), ShouldNotEqual, prometheus.DefaultRegisterer)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("api"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithRegistry(registry),
			)
			m.RecordResult(3, "object")

			Convey("Then metrics use the namespace and registry", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_api_rigs_total")
				So(names, ShouldContain, "test_api_layers_emitted")
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := NewManager()

		Convey("When detections are recorded", func() {
			m.RecordDetection(OutcomeLive, "")
			m.RecordDetection(OutcomeFallback, "timeout")
			m.RecordDetection(OutcomeFallback, "timeout")

			Convey("Then they are counted per outcome and reason", func() {
				So(testutil.ToFloat64(m.detections.WithLabelValues(OutcomeLive, "")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.detections.WithLabelValues(OutcomeFallback, "timeout")), ShouldEqual, 2)
			})
		})

		Convey("When requests are observed", func() {
			m.ObserveRequest("/process-image", http.MethodPost, 200, 120*time.Millisecond)
			m.ObserveRequest("", http.MethodGet, 404, time.Millisecond)

			Convey("Then unmatched routes share one label", func() {
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("/process-image", "POST", "200")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")), ShouldEqual, 1)
			})
		})

		Convey("When the handler is scraped", func() {
			m.RecordResult(17, "character")
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then it serves the text format", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), `autorig_rigs_total{rig_type="character"} 1`), ShouldBeTrue)
			})
		})
	})
}
