package authorize

import (
	"context"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"
)

// PolicyChannel is the Postgres NOTIFY channel instances use to tell each
// other the policy changed.
const PolicyChannel = "booking_policy_update"

var policyLoadHealthy atomic.Bool

func init() {
	policyLoadHealthy.Store(true)
}

// IsPolicyHealthy is false while the last watcher-triggered reload failed.
func IsPolicyHealthy() bool {
	return policyLoadHealthy.Load()
}

type CleanupFunc func(ctx context.Context)

// NewEnforcer builds a DistributedEnforcer whose policy lives in Postgres
// (through the ent adapter) and is reloaded on every PolicyChannel notice.
func NewEnforcer(cfg Config, dsn string) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	m, err := LoadModel(cfg.CasbinModelPath)
	if err != nil {
		return nil, nil, err
	}
	a, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	e, err := casbin.NewDistributedEnforcer(m, a)
	if err != nil {
		return nil, nil, err
	}
	e.EnableAutoSave(true)

	cleanup := func(context.Context) {}
	if cfg.PolicySync {
		w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{
			Channel: PolicyChannel,
		})
		if err != nil {
			return nil, nil, err
		}
		err = w.SetUpdateCallback(func(msg string) {
			slog.Debug("casbin policy update received", "message", msg)
			if err := e.LoadPolicy(); err != nil {
				slog.Error("casbin policy reload failed", "err", err)
				policyLoadHealthy.Store(false)
				return
			}
			policyLoadHealthy.Store(true)
		})
		if err != nil {
			return nil, nil, err
		}
		if err := e.SetWatcher(w); err != nil {
			return nil, nil, err
		}
		cleanup = func(context.Context) {
			w.Close()
			slog.Info("casbin policy watcher closed")
		}
	}

	return e, cleanup, nil
}
