package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"wanderlab.app/internal/persistence/logdb"
	"wanderlab.app/internal/relay"
	"wanderlab.app/internal/scenario"
	"wanderlab.app/internal/sim/host"
	"wanderlab.app/internal/sim/mask"
	"wanderlab.app/internal/sim/tuning"
	"wanderlab.app/internal/transport/ws"
)

type envConfig struct {
	CollectorURL    string `env:"WL_COLLECTOR_URL"`
	AdminPassword   string `env:"WL_ADMIN_PASSWORD"`
	EnableAdminHTTP bool   `env:"WL_ENABLE_ADMIN_HTTP" envDefault:"true"`
	EnablePprofHTTP bool   `env:"WL_ENABLE_PPROF_HTTP" envDefault:"false"`
	DisableDB       bool   `env:"WL_DISABLE_DB" envDefault:"false"`
	RelayQueue      int    `env:"WL_RELAY_QUEUE" envDefault:"256"`
}

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		scenarioPath = flag.String("scenario", "./configs/rooms.csv", "room/task table path")
		maskPath     = flag.String("mask", "./configs/collision.png", "collision mask image path")
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		logger.Fatalf("parse env: %v", err)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	scn, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	if len(scn.Rooms) == 0 {
		logger.Fatalf("scenario %s: no usable rows", *scenarioPath)
	}
	logger.Printf("scenario: %d rooms, digest=%.12s", len(scn.Rooms), scn.Digest)

	m, err := mask.Load(*maskPath, tune.WallThreshold)
	if err != nil {
		logger.Fatalf("load collision mask: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	var store *logdb.Store
	if !ec.DisableDB {
		store, err = logdb.Open(filepath.Join(*dataDir, "logs.db"))
		if err != nil {
			logger.Fatalf("open log db: %v", err)
		}
		defer store.Close()
	}

	var rl *relay.Relay
	hostCfg := host.Config{
		DataDir:  *dataDir,
		Tuning:   tune,
		Scenario: scn,
		Mask:     m,
		Store:    store,
	}
	if url := strings.TrimSpace(ec.CollectorURL); url != "" {
		rl = relay.New(relay.NewHTTPTransport(url), ec.RelayQueue, logger)
		defer rl.Close()
		hostCfg.Collector = relay.NewCollector(rl)
		logger.Printf("collector relay enabled")
	} else {
		logger.Printf("collector relay disabled (WL_COLLECTOR_URL empty)")
	}

	h := host.New(hostCfg, logger)
	defer h.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		hm := h.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP wanderlab_sessions_active Currently running sessions.\n")
		fmt.Fprintf(rw, "# TYPE wanderlab_sessions_active gauge\n")
		fmt.Fprintf(rw, "wanderlab_sessions_active %d\n", hm.Active)

		fmt.Fprintf(rw, "# HELP wanderlab_sessions_total Sessions by terminal outcome.\n")
		fmt.Fprintf(rw, "# TYPE wanderlab_sessions_total counter\n")
		fmt.Fprintf(rw, "wanderlab_sessions_total{outcome=%q} %d\n", "started", hm.StartedTotal)
		fmt.Fprintf(rw, "wanderlab_sessions_total{outcome=%q} %d\n", "finished", hm.FinishedTotal)
		fmt.Fprintf(rw, "wanderlab_sessions_total{outcome=%q} %d\n", "abandoned", hm.AbandonedTotal)

		if store != nil {
			fmt.Fprintf(rw, "# HELP wanderlab_logdb_dropped_total Log db writes dropped because the queue was saturated.\n")
			fmt.Fprintf(rw, "# TYPE wanderlab_logdb_dropped_total counter\n")
			fmt.Fprintf(rw, "wanderlab_logdb_dropped_total %d\n", store.Dropped())
		}
		writeRelayMetrics(rw, rl)
	})

	if ec.EnableAdminHTTP {
		gate := adminGate(ec.AdminPassword)
		mux.HandleFunc("/admin/v1/sessions", gate(func(rw http.ResponseWriter, r *http.Request) {
			if store == nil {
				http.Error(rw, "log db disabled", http.StatusServiceUnavailable)
				return
			}
			store.Flush(time.Second)
			rows, err := store.ListSessions()
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rows)
		}))
		mux.HandleFunc("/admin/v1/logs", gate(func(rw http.ResponseWriter, r *http.Request) {
			if store == nil {
				http.Error(rw, "log db disabled", http.StatusServiceUnavailable)
				return
			}
			id := strings.TrimSpace(r.URL.Query().Get("session"))
			if id == "" {
				http.Error(rw, "missing ?session=", http.StatusBadRequest)
				return
			}
			store.Flush(time.Second)
			rows, err := store.EventsForSession(id)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rows)
		}))
	} else {
		logger.Printf("admin endpoints disabled (WL_ENABLE_ADMIN_HTTP=false)")
	}
	if ec.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(h, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// adminGate protects the admin surface with the shared study password and
// a loopback check. Both are intentionally simple: this is a local
// research tool, not a public service.
func adminGate(password string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if password != "" {
				got := r.Header.Get("X-Admin-Password")
				if got == "" {
					got = r.URL.Query().Get("password")
				}
				if subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
					http.Error(rw, "forbidden", http.StatusForbidden)
					return
				}
			}
			next(rw, r)
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeRelayMetrics(rw http.ResponseWriter, rl *relay.Relay) {
	if rl == nil {
		return
	}
	s := rl.Stats()
	fmt.Fprintf(rw, "# HELP wanderlab_relay_queue_depth Current relay queue depth.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_queue_depth gauge\n")
	fmt.Fprintf(rw, "wanderlab_relay_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP wanderlab_relay_queue_capacity Relay queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_queue_capacity gauge\n")
	fmt.Fprintf(rw, "wanderlab_relay_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP wanderlab_relay_enqueued_total Total relay enqueue attempts.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_enqueued_total counter\n")
	fmt.Fprintf(rw, "wanderlab_relay_enqueued_total %d\n", s.EnqueuedTotal)

	fmt.Fprintf(rw, "# HELP wanderlab_relay_dropped_total Messages dropped because the queue was saturated.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_dropped_total counter\n")
	fmt.Fprintf(rw, "wanderlab_relay_dropped_total %d\n", s.DroppedTotal)

	fmt.Fprintf(rw, "# HELP wanderlab_relay_sent_total Messages delivered to the collector.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_sent_total counter\n")
	fmt.Fprintf(rw, "wanderlab_relay_sent_total %d\n", s.SentTotal)

	fmt.Fprintf(rw, "# HELP wanderlab_relay_failed_total Messages that failed to send.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_failed_total counter\n")
	fmt.Fprintf(rw, "wanderlab_relay_failed_total %d\n", s.FailedTotal)

	fmt.Fprintf(rw, "# HELP wanderlab_relay_last_error_unix Unix timestamp of the last failed send.\n")
	fmt.Fprintf(rw, "# TYPE wanderlab_relay_last_error_unix gauge\n")
	fmt.Fprintf(rw, "wanderlab_relay_last_error_unix %d\n", s.LastErrorUnix)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
