package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	metricActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "othello",
		Name:      "actions_total",
		Help:      "Device actions executed, by action and outcome.",
	}, []string{"action", "outcome"})
	metricStories = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "othello",
		Name:      "stories_total",
		Help:      "Story checks processed, by outcome (passed, failed_assertion, error).",
	}, []string{"outcome"})
	metricSessionTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "othello",
		Name:      "session_transfers_total",
		Help:      "Auth session pulls and pushes, by direction and outcome.",
	}, []string{"direction", "outcome"})
)

// RecordAction counts one executed action.
func RecordAction(action string, err error) {
	metricActions.WithLabelValues(action, outcomeOf(err)).Inc()
}

// RecordStory counts one processed story.
func RecordStory(outcome string) {
	metricStories.WithLabelValues(outcome).Inc()
}

// RecordSessionTransfer counts one session pull or push.
func RecordSessionTransfer(direction, outcome string) {
	metricSessionTransfers.WithLabelValues(direction, outcome).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ServeMetrics exposes the default registry on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
