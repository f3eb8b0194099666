package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/config"
	"kotobadb.dev/kotobadb/engine"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/graph/schema"
	"kotobadb.dev/kotobadb/monitoring"
	"kotobadb.dev/kotobadb/registry"
	"kotobadb.dev/kotobadb/security"
	"kotobadb.dev/kotobadb/storage"
	"kotobadb.dev/kotobadb/storage/tier"
	"kotobadb.dev/kotobadb/txlog"
)

// newLogger builds the process logger from config.
func newLogger(c config.Config) *logrus.Logger {
	logger := common.Logger
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// buildTier composes the hybrid storage tier from configuration: hot
// and cold backends resolved through the backend registry, plus an
// optional cache and the configured routing policy.
func buildTier(c config.Config) (*tier.Tier, error) {
	reg := registry.Default()

	open := func(name string) (storage.Backend, error) {
		return reg.Open(name, map[string]string{"path": c.Storage.BoltPath})
	}
	hot, err := open(c.Storage.HotBackend)
	if err != nil {
		return nil, exitWith(ExitStorage, err)
	}
	cold, err := open(c.Storage.ColdBackend)
	if err != nil {
		return nil, exitWith(ExitStorage, err)
	}

	var cache tier.CacheBackend
	if c.Storage.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: c.Storage.RedisAddr})
		cache = tier.NewRedisCache(client, "kotobadb")
	}

	policy, err := buildRoutingPolicy(c.Storage)
	if err != nil {
		return nil, err
	}
	return tier.New(hot, cold, cache, policy), nil
}

func buildRoutingPolicy(c config.StorageConfig) (tier.RoutingPolicy, error) {
	switch c.RoutingPolicy {
	case "age_based":
		return tier.NewAgeBasedPolicy(time24h(c.ColdMigrationDays)), nil
	case "access_frequency":
		return tier.NewFrequencyBasedPolicy(4096)
	case "size_based":
		return tier.NewSizeBasedPolicy(c.SizeThresholdBytes), nil
	case "manual":
		return tier.NewManualPolicy(), nil
	default:
		return nil, exitWith(ExitConfig, fmt.Errorf("unknown routing policy %q", c.RoutingPolicy))
	}
}

// buildPolicy constructs the policy service per config and seeds the
// common role set so issued principals have capabilities to resolve.
func buildPolicy(c config.PolicyConfig) (*security.PolicyService, error) {
	mode, err := policyMode(c.Mode)
	if err != nil {
		return nil, err
	}
	svc := security.NewPolicyServiceWithConfig(security.PolicyEngineConfig{
		Mode:        mode,
		RBACEnabled: c.RBACEnabled,
		ABACEnabled: c.ABACEnabled,
		DefaultDeny: c.DefaultDeny,
	})
	if err := svc.SetupCommonPolicies(); err != nil {
		return nil, exitWith(ExitInternal, err)
	}
	return svc, nil
}

func policyMode(mode string) (security.PolicyMode, error) {
	switch mode {
	case "rbac_only":
		return security.ModeRBACOnly, nil
	case "abac_only":
		return security.ModeABACOnly, nil
	case "rbac_first":
		return security.ModeRBACFirst, nil
	case "abac_first":
		return security.ModeABACFirst, nil
	case "combined":
		return security.ModeCombined, nil
	default:
		return 0, exitWith(ExitConfig, fmt.Errorf("unknown policy mode %q", mode))
	}
}

// assembled bundles everything a command needs to run the engine.
type assembled struct {
	Engine *engine.Engine
	Tier   *tier.Tier
	Log    *txlog.Log
	Health *monitoring.Aggregator
	Logger *logrus.Logger
	Config config.Config
}

// assemble builds the full engine stack from configuration. withPolicy
// controls whether the authorization layer gates operations; one-shot
// local commands (query, replay) run as the trusted operator.
func assemble(c config.Config, withPolicy bool) (*assembled, error) {
	logger := newLogger(c)

	storageTier, err := buildTier(c)
	if err != nil {
		return nil, err
	}

	store := graph.NewStore(storageTier)
	txLog := txlog.NewLog(storageTier, c.NodeID, uint64(5*time.Minute/time.Millisecond), nil)
	schemaRegistry := schema.NewRegistry(storageTier)

	var policy *security.PolicyService
	if withPolicy {
		policy, err = buildPolicy(c.Policy)
		if err != nil {
			return nil, err
		}
	}

	recorder := monitoring.NewLogRecorder(logger)
	eng := engine.New(store, txLog, schemaRegistry, engine.Options{
		Policy:   policy,
		Logger:   logger,
		Recorder: recorder,
		NodeID:   c.NodeID,
		Author:   c.NodeID,
	})

	health := monitoring.NewAggregator(c.Monitoring.HealthCheckInterval, logger)
	registerHealthChecks(health, storageTier)

	return &assembled{
		Engine: eng,
		Tier:   storageTier,
		Log:    txLog,
		Health: health,
		Logger: logger,
		Config: c,
	}, nil
}

func registerHealthChecks(health *monitoring.Aggregator, t *tier.Tier) {
	health.Register("storage", func(ctx context.Context) monitoring.CheckResult {
		probe := []byte("HZ:probe")
		if err := t.Put(ctx, probe, []byte("ok")); err != nil {
			return monitoring.CheckResult{Status: monitoring.StatusUnhealthy, Message: err.Error()}
		}
		if _, _, err := t.Get(ctx, probe); err != nil {
			return monitoring.CheckResult{Status: monitoring.StatusDegraded, Message: err.Error()}
		}
		return monitoring.CheckResult{Status: monitoring.StatusHealthy}
	})
}

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
