package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/internal/githubauth"
	"github.com/durolink/durolink/pkg/logger"
	"github.com/durolink/durolink/pkg/metrics"
)

// Syncer bulk-populates the directory from the app's installation list.
// It runs once at startup (not awaited by request handling) and again on
// a cron schedule to pick up installs and uninstalls missed by webhooks.
type Syncer struct {
	directory *Directory
	authority *githubauth.Authority
	gateway   *github.Gateway
	log       *zap.Logger
}

// NewSyncer wires a Syncer over the directory and its upstream collaborators.
func NewSyncer(d *Directory, authority *githubauth.Authority, gateway *github.Gateway) (*Syncer, error) {
	if d == nil {
		return nil, errors.New("directory: directory is required")
	}
	if authority == nil {
		return nil, errors.New("directory: authority is required")
	}
	if gateway == nil {
		return nil, errors.New("directory: gateway is required")
	}

	return &Syncer{
		directory: d,
		authority: authority,
		gateway:   gateway,
		log:       logger.WithModule("directory"),
	}, nil
}

// Run lists every installation known to the app identity and records
// each (account login, installation id) pair. The directory is marked
// ready after the first successful pass.
func (s *Syncer) Run(ctx context.Context) error {
	appJWT, err := s.authority.AppJWT(ctx)
	if err != nil {
		metrics.DirectorySyncs.WithLabelValues("failure").Inc()
		return fmt.Errorf("directory sync: app jwt: %w", err)
	}

	installations, err := s.gateway.ListAppInstallations(ctx, appJWT)
	if err != nil {
		metrics.DirectorySyncs.WithLabelValues("failure").Inc()
		return fmt.Errorf("directory sync: list installations: %w", err)
	}

	for _, installation := range installations {
		if err := s.directory.Write(ctx, installation.Account.Login, installation.ID); err != nil {
			metrics.DirectorySyncs.WithLabelValues("failure").Inc()
			return err
		}
	}

	s.directory.markReady()
	metrics.DirectorySyncs.WithLabelValues("success").Inc()
	s.log.Info("installation directory synced", zap.Int("installations", len(installations)))
	return nil
}

// Start launches the bootstrap sync in the background. Requests that
// arrive before it finishes and miss the durable store see a
// directory-not-ready condition instead of a silent miss.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		if err := s.Run(ctx); err != nil {
			s.log.Error("bootstrap sync failed", zap.Error(err))
		}
	}()
}

// Schedule registers a periodic re-sync on the given cron spec and
// returns the started scheduler; the caller owns stopping it.
func (s *Syncer) Schedule(spec string) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		if err := s.Run(context.Background()); err != nil {
			s.log.Error("scheduled sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("directory sync: schedule %q: %w", spec, err)
	}

	scheduler.Start()
	return scheduler, nil
}
