package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/subnet-watchdog/pkg/health"
	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/runtime"
)

var (
	// ErrNodeUnhealthy is returned when the node endpoint does not answer in time
	ErrNodeUnhealthy = errors.New("node is not healthy")

	// ErrWatchdogUnhealthy is returned when the watchdog container is missing, stopped or just restarted
	ErrWatchdogUnhealthy = errors.New("watchdog is not healthy")
)

// ContainerFinder locates a container by name fragment
type ContainerFinder interface {
	Find(ctx context.Context, fragment string) (runtime.ContainerInfo, error)
}

// Config configures the probe
type Config struct {
	// NodeHealthURL only needs to answer with a success status
	NodeHealthURL string
	NodeTimeout   time.Duration

	// WatchdogFragment identifies the watchdog's own container
	WatchdogFragment string
	MinUptime        time.Duration
}

// DefaultConfig returns the probe defaults
func DefaultConfig() Config {
	return Config{
		NodeHealthURL:    "http://avalanche:9650/ext/health",
		NodeTimeout:      5 * time.Second,
		WatchdogFragment: "watchdog",
		MinUptime:        5 * time.Second,
	}
}

// Probe reports whether a node and its watchdog are both serviceable
type Probe struct {
	config     Config
	node       health.Checker
	containers ContainerFinder
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a probe
func New(cfg Config, containers ContainerFinder) *Probe {
	def := DefaultConfig()
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = def.NodeTimeout
	}
	if cfg.WatchdogFragment == "" {
		cfg.WatchdogFragment = def.WatchdogFragment
	}
	if cfg.MinUptime <= 0 {
		cfg.MinUptime = def.MinUptime
	}

	return &Probe{
		config:     cfg,
		node:       health.NewHTTPChecker(cfg.NodeHealthURL).WithTimeout(cfg.NodeTimeout).WithStatusOnly(),
		containers: containers,
		now:        time.Now,
		logger:     log.WithComponent("probe"),
	}
}

// Check runs the node and watchdog checks concurrently and returns the first failure
func (p *Probe) Check(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.checkNode(ctx) })
	g.Go(func() error { return p.checkWatchdog(ctx) })
	return g.Wait()
}

func (p *Probe) checkNode(ctx context.Context) error {
	result := p.node.Check(ctx)
	if !result.Healthy {
		return fmt.Errorf("%w: %s", ErrNodeUnhealthy, result.Message)
	}
	return nil
}

func (p *Probe) checkWatchdog(ctx context.Context) error {
	ctr, err := p.containers.Find(ctx, p.config.WatchdogFragment)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatchdogUnhealthy, err)
	}

	if ctr.State != runtime.StateRunning && ctr.State != runtime.StateCreated {
		return fmt.Errorf("%w: container %s is %s", ErrWatchdogUnhealthy, ctr.ID, ctr.State)
	}
	if uptime := ctr.Uptime(p.now()); uptime < p.config.MinUptime {
		return fmt.Errorf("%w: container %s up for %s", ErrWatchdogUnhealthy, ctr.ID, uptime.Round(time.Millisecond))
	}
	return nil
}

// ServeHTTP answers 200 "OK" when healthy and 500 with the failure otherwise
func (p *Probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := p.Check(r.Context()); err != nil {
		p.logger.Warn().Err(err).Msg("probe failed")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter routes every GET to the probe
func NewRouter(p *Probe) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", p).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/health", p).Methods(http.MethodGet, http.MethodHead)
	return r
}

// Serve runs the probe server until ctx is cancelled
func Serve(ctx context.Context, addr string, p *Probe) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(p),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info().Str("addr", addr).Msg("probe server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("probe server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
