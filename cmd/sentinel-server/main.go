package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelsla/sentinel/internal/api"
	"github.com/sentinelsla/sentinel/internal/config"
	"github.com/sentinelsla/sentinel/internal/eval"
	"github.com/sentinelsla/sentinel/internal/incident"
	"github.com/sentinelsla/sentinel/internal/policy"
	"github.com/sentinelsla/sentinel/internal/scheduler"
	"github.com/sentinelsla/sentinel/internal/storage/sqlite"
)

func main() {
	cfg := parseFlags()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting Sentinel server...")
	log.Printf("Config: port=%d, db=%s, policy-dir=%s", cfg.Port, cfg.DBPath, cfg.PolicyDirectory)

	// Open storage
	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Load and validate policies
	validator, err := policy.NewValidator(cfg.SchemaPath)
	if err != nil {
		log.Fatalf("Failed to create policy validator: %v", err)
	}

	policies, err := loadPolicies(validator, cfg.PolicyDirectory)
	if err != nil {
		log.Fatalf("Failed to load policies: %v", err)
	}
	log.Printf("Loaded %d policies", len(policies))

	var builtin *policy.Policy
	if cfg.DefaultTargetPct > 0 {
		builtin = policy.BuiltinDefault(cfg.DefaultTargetPct)
		log.Printf("Built-in default policy enabled (target=%.4f%%)", cfg.DefaultTargetPct)
	}
	resolver := policy.NewResolver(policies, builtin)

	// Wire the engine
	source := eval.NewIncidentSource(store, store)
	recorder := eval.NewRecorder(store)
	calc := eval.NewCalculator(source, store, recorder)
	builder := incident.NewBuilder(incident.DefaultConfig(), store)

	sched := scheduler.NewScheduler(calc, resolver, cfg.RecomputeInterval, cfg.MaxConcurrentRecomputes)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Watch the policy directory for changes
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.WatchPolicies {
		go func() {
			err := policy.Watch(watchCtx, cfg.PolicyDirectory, func() error {
				reloaded, err := loadPolicies(validator, cfg.PolicyDirectory)
				if err != nil {
					return err
				}
				resolver.SetPolicies(reloaded)
				return nil
			})
			if err != nil {
				log.Printf("Policy watcher stopped: %v", err)
			}
		}()
	}

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(sched, store, builder, addr)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}

		stopWatch()
		sched.Stop()

		log.Println("Shutdown complete")
	}
}

func loadPolicies(validator *policy.Validator, dir string) ([]policy.PolicyWithFile, error) {
	validationErrors := validator.ValidateDirectory(dir)
	if len(validationErrors) > 0 {
		for _, e := range validationErrors {
			log.Printf("Policy validation: %s", e.Error())
		}
		return nil, fmt.Errorf("policy validation failed: %d errors", len(validationErrors))
	}

	policies, loadErrors := policy.LoadFromDirectory(dir)
	if len(loadErrors) > 0 {
		return nil, fmt.Errorf("failed to load policies: %d errors", len(loadErrors))
	}
	if len(policies) == 0 {
		return nil, fmt.Errorf("no policies found in %s", dir)
	}

	return policies, nil
}

func parseFlags() config.Config {
	cfg := config.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file")
	flag.StringVar(&cfg.PolicyDirectory, "policy-dir", cfg.PolicyDirectory, "Directory containing SLA policy YAML files")
	flag.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "Path to the policy JSON schema")
	flag.BoolVar(&cfg.WatchPolicies, "watch-policies", cfg.WatchPolicies, "Reload policies when the policy directory changes")
	flag.Float64Var(&cfg.DefaultTargetPct, "default-target", cfg.DefaultTargetPct, "Built-in fallback availability target in percent (0 disables the fallback)")
	flag.DurationVar(&cfg.RecomputeInterval, "recompute-interval", cfg.RecomputeInterval, "How often windows are recomputed")
	flag.Int64Var(&cfg.MaxConcurrentRecomputes, "max-concurrent", cfg.MaxConcurrentRecomputes, "Maximum concurrent window recomputations")

	flag.Parse()

	return cfg
}
