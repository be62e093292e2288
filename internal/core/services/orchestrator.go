package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/syncbridge/internal/connectors/remote"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Cadences and batch size of the polling loop.
const (
	UploadInterval  = 5 * time.Second
	CollectInterval = time.Hour
	UploadBatchSize = 10
)

// Ensure Orchestrator implements the interface.
var _ driving.SyncRunner = (*Orchestrator)(nil)

// Orchestrator runs the synchronisation loop: an upload pass every few
// seconds pushes pending items to their destinations, an hourly collect
// pass asks each permanent source for items modified since its watermark.
// Both passes run on one goroutine; per-source failures are logged and
// never stop the loop.
type Orchestrator struct {
	store     driven.SourceStore
	registry  *ConnectorRegistry
	kbFactory driven.KnowledgeBoxFactory
	loader    *remote.Loader

	uploadEvery  time.Duration
	collectEvery time.Duration
	batchSize    int
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIntervals overrides the pass cadences. Used by tests.
func WithIntervals(upload, collect time.Duration) Option {
	return func(o *Orchestrator) {
		o.uploadEvery = upload
		o.collectEvery = collect
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates the sync loop. loader may be nil when dynamic
// connectors are disabled.
func NewOrchestrator(
	store driven.SourceStore,
	registry *ConnectorRegistry,
	kbFactory driven.KnowledgeBoxFactory,
	loader *remote.Loader,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		registry:     registry,
		kbFactory:    kbFactory,
		loader:       loader,
		uploadEvery:  UploadInterval,
		collectEvery: CollectInterval,
		batchSize:    UploadBatchSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run blocks until ctx is cancelled. Dynamic connectors are loaded once at
// startup; a failed load only costs the dynamic entries.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.loadRemoteConnectors(ctx)

	uploadTicker := time.NewTicker(o.uploadEvery)
	defer uploadTicker.Stop()
	collectTicker := time.NewTicker(o.collectEvery)
	defer collectTicker.Stop()

	// First collect runs immediately so a fresh source does not wait an
	// hour for its first listing.
	o.CollectPass(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-uploadTicker.C:
			o.UploadPass(ctx)
		case <-collectTicker.C:
			o.CollectPass(ctx)
		}
	}
}

func (o *Orchestrator) loadRemoteConnectors(ctx context.Context) {
	if o.loader == nil {
		return
	}
	for _, rc := range o.loader.Load(ctx) {
		logger.Info("registering dynamic connector %s", rc.ID())
		o.registry.Register(rc.ID(), rc.Factory())
	}
}

// UploadPass pushes up to one batch of pending items per source.
func (o *Orchestrator) UploadPass(ctx context.Context) {
	sources, err := o.store.List(ctx)
	if err != nil {
		logger.Error("list sources: %v", err)
		return
	}

	for id, source := range sources {
		if err := o.uploadSource(ctx, id, source); err != nil {
			logger.Error("source %s: upload pass: %v", id, err)
		}
	}
}

func (o *Orchestrator) uploadSource(ctx context.Context, id string, source domain.Source) error {
	if source.Destination == nil {
		return nil
	}
	pending := source.PendingItems(o.batchSize)
	if len(pending) == 0 {
		return nil
	}

	connector, err := o.registry.New(source.ConnectorID)
	if err != nil {
		return err
	}
	connector.SetParameters(source.Parameters)
	if !connector.HasAuthData() {
		logger.Warn("source %s has no usable credentials, skipping", id)
		return nil
	}

	uploader := NewUploader(o.kbFactory(*source.Destination))

	for _, item := range pending {
		// Terminal items (errored in an earlier pass) refuse the
		// transition and are left alone.
		if !source.SetItemStatus(item.OriginalID, domain.StatusProcessing) {
			continue
		}

		err := o.processWithRefresh(ctx, uploader, connector, &source, item)
		if err != nil {
			logger.Error("source %s: item %s: %v", id, item.OriginalID, err)
			source.SetItemStatus(item.OriginalID, domain.StatusError)
			if errors.Is(err, domain.ErrTokenRefreshFailed) || domain.IsUnauthorized(err) {
				// Credentials are gone until the user re-grants access;
				// the rest of the batch would only fail the same way.
				break
			}
			continue
		}

		source.SetItemStatus(item.OriginalID, domain.StatusUploaded)
		source.Total++
	}

	return o.store.Save(ctx, id, source)
}

// processWithRefresh uploads one item, refreshing the token and retrying
// exactly once when the provider rejects the credentials.
func (o *Orchestrator) processWithRefresh(
	ctx context.Context, uploader *Uploader, connector driven.Connector, source *domain.Source, item domain.SyncItem,
) error {
	err := uploader.Process(ctx, connector, item)
	if !domain.IsUnauthorized(err) {
		return err
	}

	refreshed, refreshErr := connector.RefreshAuthentication(ctx)
	source.Parameters = connector.Parameters()
	if !refreshed {
		if refreshErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, refreshErr)
		}
		return domain.ErrTokenRefreshFailed
	}

	logger.Info("refreshed credentials for connector %s", source.ConnectorID)
	return uploader.Process(ctx, connector, item)
}

// CollectPass appends newly modified items to every permanent source.
func (o *Orchestrator) CollectPass(ctx context.Context) {
	sources, err := o.store.List(ctx)
	if err != nil {
		logger.Error("list sources: %v", err)
		return
	}

	for id, source := range sources {
		if !source.PermanentSync {
			continue
		}
		if err := o.collectSource(ctx, id, source); err != nil {
			logger.Error("source %s: collect pass: %v", id, err)
		}
	}
}

func (o *Orchestrator) collectSource(ctx context.Context, id string, source domain.Source) error {
	connector, err := o.registry.New(source.ConnectorID)
	if err != nil {
		return err
	}
	connector.SetParameters(source.Parameters)
	if !connector.HasAuthData() {
		logger.Warn("source %s has no usable credentials, skipping", id)
		return nil
	}

	items, err := connector.LastModified(ctx, source.LastSyncGMT, source.Folders)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupported) {
			logger.Debug("connector %s does not support incremental listing", source.ConnectorID)
			return nil
		}
		return err
	}

	added := 0
	for _, item := range items {
		if item.UUID == "" {
			item.UUID = uuid.NewString()
		}
		if source.QueueItem(item) {
			added++
		}
	}
	source.LastSyncGMT = o.now().UTC().Format(time.RFC3339)

	if added > 0 {
		logger.Info("source %s: collected %d new items", id, added)
	}
	return o.store.Save(ctx, id, source)
}
