// Package leader provides Kubernetes Lease-based leader election so that
// only one replica owns the game document and answers commands.
package leader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/jensholdgaard/trinity/internal/config"
)

// ErrNotLeader is returned by Check while another replica holds the lease.
var ErrNotLeader = errors.New("not the leader")

// identity returns a unique identity for this instance.
// It uses the POD_NAME env var if set, otherwise the hostname.
func identity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// ClientFactory creates a Kubernetes clientset.
// Extracted as a variable for testing.
var ClientFactory = func() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return client, nil
}

// Elector runs the election loop and tracks whether this replica leads.
type Elector struct {
	cfg     config.LeaderElectionConfig
	logger  *slog.Logger
	id      string
	leading atomic.Bool
	leader  atomic.Value // string
}

// New returns an Elector for cfg.
func New(cfg config.LeaderElectionConfig, logger *slog.Logger) *Elector {
	return &Elector{cfg: cfg, logger: logger, id: identity()}
}

// Identity is the name this replica campaigns under.
func (e *Elector) Identity() string { return e.id }

// Leading reports whether this replica currently holds the lease.
func (e *Elector) Leading() bool { return e.leading.Load() }

// Leader returns the identity of the last observed leader, if any.
func (e *Elector) Leader() string {
	s, _ := e.leader.Load().(string)
	return s
}

// Check is a readiness probe that passes only on the leader.
func (e *Elector) Check(context.Context) error {
	if e.Leading() {
		return nil
	}
	if l := e.Leader(); l != "" {
		return fmt.Errorf("%w: %s leads", ErrNotLeader, l)
	}
	return ErrNotLeader
}

// Run blocks in the election loop until ctx is done. onStartedLeading is
// invoked when this replica becomes the leader and should block until its
// ctx is done. onStoppedLeading runs when leadership is lost.
func (e *Elector) Run(ctx context.Context, onStartedLeading func(ctx context.Context), onStoppedLeading func()) error {
	e.logger.Info("starting leader election",
		slog.String("identity", e.id),
		slog.String("lease", e.cfg.LeaseName),
		slog.String("namespace", e.cfg.LeaseNamespace),
	)

	client, err := ClientFactory()
	if err != nil {
		return fmt.Errorf("leader election client: %w", err)
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.cfg.LeaseName,
			Namespace: e.cfg.LeaseNamespace,
		},
		Client: client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.id,
		},
	}

	le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   e.cfg.LeaseDuration,
		RenewDeadline:   e.cfg.RenewDeadline,
		RetryPeriod:     e.cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            e.cfg.LeaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				e.leading.Store(true)
				e.logger.Info("acquired leadership", slog.String("identity", e.id))
				onStartedLeading(ctx)
			},
			OnStoppedLeading: func() {
				e.leading.Store(false)
				e.logger.Info("lost leadership", slog.String("identity", e.id))
				onStoppedLeading()
			},
			OnNewLeader: func(newID string) {
				e.leader.Store(newID)
				if newID == e.id {
					return
				}
				e.logger.Info("new leader elected", slog.String("leader", newID))
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configuring leader election: %w", err)
	}
	le.Run(ctx)
	return nil
}
