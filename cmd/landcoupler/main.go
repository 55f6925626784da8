package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/orogenlab/landcoupler/bridge"
	"github.com/orogenlab/landcoupler/internal/logging"
	"github.com/orogenlab/landcoupler/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/model.yaml", "Path to the YAML model configuration")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	targetTime := flag.Float64("until", 0, "Simulation time to run to (0 uses the model's end time)")
	dt := flag.Float64("dt", 0, "Step size override (0 uses the model's dt)")
	velocityEvery := flag.Float64("velocity-every", 0, "Interval for re-applying the synthetic velocity field (0 applies once at start)")
	amplitude := flag.Float64("amplitude", 1.0, "Amplitude of the synthetic velocity field")
	verbose := flag.Bool("verbose", false, "Log per-step progress")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	collector, err := observability.NewCouplerCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	bc := bridge.NewContext(bridge.Config{Log: log, Metrics: collector})
	defer bc.Close()

	handle := bc.Create(ctx, *configPath)
	if handle == bridge.FailureHandle {
		log.Error(ctx, "model creation failed", logging.String("config", *configPath))
		os.Exit(1)
	}
	defer bc.Destroy(ctx, handle)

	tNow := bc.CurrentTime(ctx, handle)
	modelDt := bc.TimeStep(ctx, handle)
	target := *targetTime
	if target <= tNow {
		target = tNow + 10*modelDt
	}
	log.Info(ctx, "starting coupled run",
		logging.Float64("t_now", tNow),
		logging.Float64("target", target),
		logging.Float64("dt", modelDt))

	interval := *velocityEvery
	if interval <= 0 {
		interval = target - tNow
	}

	for t := bc.CurrentTime(ctx, handle); t < target; t = bc.CurrentTime(ctx, handle) {
		coords, vels := bridge.RotationalField(t, 5.0, 5.0, *amplitude)
		if status := bc.ApplyVelocityData(ctx, handle, coords, vels,
			bridge.RotationalFieldPoints, 0, 3, 1.0); status != bridge.StatusOK {
			log.Error(ctx, "velocity application failed", logging.Float64("t_now", t))
			os.Exit(1)
		}

		next := t + interval
		if next > target {
			next = target
		}
		completed := bc.RunUntilTime(ctx, handle, next, *dt, *verbose)
		if completed < 0 {
			log.Error(ctx, "run failed", logging.Float64("t_now", t))
			os.Exit(1)
		}
		log.Info(ctx, "advanced",
			logging.Float64("t_now", bc.CurrentTime(ctx, handle)),
			logging.Int("steps", completed))
	}

	// Probe the final surface at a few sample points.
	probes := []float64{
		2.5, 2.5, 0,
		5.0, 5.0, 0,
		7.5, 7.5, 0,
	}
	elevations := bc.InterpolateElevationToPoints(ctx, handle, probes, 3, 3, 1.0)
	if elevations == nil {
		log.Error(ctx, "elevation sampling failed")
		os.Exit(1)
	}
	for i, e := range elevations {
		log.Info(ctx, "sampled elevation",
			logging.Float64("x", probes[3*i]),
			logging.Float64("y", probes[3*i+1]),
			logging.Float64("elevation", e))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.CouplerCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
