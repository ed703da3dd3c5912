package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"travelfolio/config"
	"travelfolio/internal/airports"
	"travelfolio/internal/alert"
	"travelfolio/internal/auth"
	"travelfolio/internal/database"
	"travelfolio/internal/flights"
	"travelfolio/internal/notify"
	"travelfolio/internal/server"
	"travelfolio/internal/session"
	"travelfolio/internal/store"
	"travelfolio/internal/types"
	"travelfolio/lib/translation"
)

type TrackerMetrics struct {
	SearchesPerformed prometheus.Counter
	AlertsChecked     prometheus.Counter
	AlertsTriggered   prometheus.Counter
	Mutex             sync.Mutex
}

var metrics = NewTrackerMetrics()

func init() {
	config.InitConfig()
	setupLogging()
}

func NewTrackerMetrics() *TrackerMetrics {
	metrics := &TrackerMetrics{
		SearchesPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "travelfolio",
			Subsystem: "tracker",
			Name:      "searches_performed",
			Help:      "The total number of flight searches sent to the backend",
		}),
		AlertsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "travelfolio",
			Subsystem: "tracker",
			Name:      "alerts_checked",
			Help:      "The total number of alert price checks",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "travelfolio",
			Subsystem: "tracker",
			Name:      "alerts_triggered",
			Help:      "The total number of triggered price alerts",
		}),
	}

	prometheus.MustRegister(metrics.SearchesPerformed)
	prometheus.MustRegister(metrics.AlertsChecked)
	prometheus.MustRegister(metrics.AlertsTriggered)

	return metrics
}

// countingSearcher counts backend searches without the flights package
// knowing about prometheus.
type countingSearcher struct {
	inner flights.Searcher
}

func (c *countingSearcher) Search(ctx context.Context, q types.SearchQuery) (*types.SearchResult, error) {
	metrics.SearchesPerformed.Inc()
	return c.inner.Search(ctx, q)
}

func main() {
	translation.Configure("locales", strings.ToLower(config.GetString("lang")))

	if config.GetBool("debug") {
		log.Debugf("effective config:\n%s", spew.Sdump(viper.AllSettings()))
	}

	dataDir := config.GetString("data_dir")
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := config.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}
	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	LoadMetricsFromDB(db)

	if retention := config.GetInt("history_retention_days"); retention > 0 {
		cutoff := time.Now().AddDate(0, 0, -retention)
		if n, err := db.PruneHistory(cutoff); err != nil {
			log.Warnf("Failed to prune price history: %v", err)
		} else if n > 0 {
			log.Infof("Pruned %d price observations older than %d days", n, retention)
		}
	}

	adb, err := airports.Load()
	if err != nil {
		log.Fatalf("Failed to load airport table: %v", err)
	}

	searcher := &countingSearcher{inner: flights.NewClient(flights.ClientConfig{
		BaseURL:  config.GetString("search_base_url"),
		CacheTTL: time.Duration(config.GetInt("search_cache_ttl_minutes")) * time.Minute,
	})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, store.Config{
		Backend:         storeBackend(),
		CredentialsFile: config.GetString("firebase_credentials"),
		AppID:           config.GetString("app_id"),
		DataDir:         dataDir,
	})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	var authn server.Authenticator
	if creds := config.GetString("firebase_credentials"); creds != "" {
		fb, err := auth.NewFirebase(ctx, creds)
		if err != nil {
			log.Fatalf("Failed to initialize firebase auth: %v", err)
		}
		authn = fb
	} else {
		log.Info("No Firebase credentials configured, login disabled")
	}

	sessions := session.NewManager(dataDir, session.DefaultTTL)
	if uid := sessions.Load(); uid != "" {
		log.Infof("✅ Restored session for %s", uid)
	}

	fanout := notify.NewFanout()
	fanout.AddSink(func(ev types.AlertEvent) {
		metrics.AlertsChecked.Inc()
		if ev.Triggered {
			metrics.AlertsTriggered.Inc()
		}
	})
	if token := config.GetString("telegram_bot_token"); token != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  token,
			ChatID: config.GetInt64("telegram_chat_id"),
			Debug:  config.GetBool("debug"),
		})
		if err != nil {
			log.Fatalf("Failed to create telegram notifier: %v", err)
		}
		fanout.AddChannel(tg)
	}

	checker := alert.NewChecker(st, alert.NewResolver(adb, searcher), db, fanout, alert.Config{
		Interval:     time.Duration(config.GetInt("check_interval_minutes")) * time.Minute,
		FallbackDays: config.GetInt("fallback_days"),
	})

	srv := server.NewServer(st, searcher, adb, checker, db, authn, sessions, server.Config{
		Addr:          fmt.Sprintf(":%d", config.GetInt("port")),
		DefaultOrigin: config.GetString("default_origin"),
	})
	fanout.AddSink(srv.Hub().AlertChecked)

	go checker.Run(ctx)

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToDB(db)
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("Shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Server shutdown: %v", err)
		}
	}()

	go func() {
		if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("API server failed: %v", err)
	}

	SaveMetricsToDB(db)
	log.Info("Metrics saved, bye")
}

// storeBackend applies the fallback policy: remote iff credentials are
// configured, unless the backend was pinned explicitly.
func storeBackend() string {
	if backend := config.GetString("store_backend"); backend != "" {
		return backend
	}
	if config.GetString("firebase_credentials") != "" {
		return "firestore"
	}
	log.Info("No Firebase credentials configured, using local store")
	return "local"
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting travel price tracker...")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func LoadMetricsFromDB(db *database.DB) {
	metrics.Mutex.Lock()
	defer metrics.Mutex.Unlock()

	searches, _ := db.GetMetric("searches_performed")
	checked, _ := db.GetMetric("alerts_checked")
	triggered, _ := db.GetMetric("alerts_triggered")

	metrics.SearchesPerformed.Add(searches)
	metrics.AlertsChecked.Add(checked)
	metrics.AlertsTriggered.Add(triggered)

	log.Debug("Metrics loaded from database")
}

func SaveMetricsToDB(db *database.DB) {
	metrics.Mutex.Lock()
	defer metrics.Mutex.Unlock()

	db.SaveMetric("searches_performed", GetMetricValue(metrics.SearchesPerformed))
	db.SaveMetric("alerts_checked", GetMetricValue(metrics.AlertsChecked))
	db.SaveMetric("alerts_triggered", GetMetricValue(metrics.AlertsTriggered))

	log.Debug("Metrics saved to database")
}

func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Printf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
