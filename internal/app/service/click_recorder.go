package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"go.uber.org/zap"
)

const defaultRecordTimeout = 3 * time.Second

// ClickSink accepts clicks from the redirect path. Submit never blocks on
// storage and never reports failure.
type ClickSink interface {
	Submit(click model.ClickMessage)
}

// ClickMetrics counts what happened to each click.
type ClickMetrics interface {
	ClickRecorded()
	ClickDropped(reason string)
}

type nopClickMetrics struct{}

func (nopClickMetrics) ClickRecorded()      {}
func (nopClickMetrics) ClickDropped(string) {}

// NewClick stamps a click with a message id and the current time.
func NewClick(linkID, hashedIP, browser, referrer string) model.ClickMessage {
	return model.ClickMessage{
		ID:          uuid.NewString(),
		ShortLinkID: linkID,
		HashedIP:    hashedIP,
		Browser:     browser,
		Referrer:    referrer,
		Timestamp:   time.Now().UTC(),
	}
}

// ClickRecorderDeps groups the collaborators of the click recorder.
type ClickRecorderDeps struct {
	Repo    repository.ClickEventRepository
	Logger  *zap.Logger
	Metrics ClickMetrics
	// Timeout bounds each write made on behalf of Submit.
	Timeout time.Duration
}

// ClickRecorder appends click events. Failures are logged and counted,
// never returned to the redirect path.
type ClickRecorder struct {
	repo    repository.ClickEventRepository
	log     *zap.Logger
	metrics ClickMetrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewClickRecorder returns a ClickRecorder writing through deps.Repo.
func NewClickRecorder(deps ClickRecorderDeps) *ClickRecorder {
	r := &ClickRecorder{
		repo:    deps.Repo,
		log:     deps.Logger,
		metrics: deps.Metrics,
		timeout: deps.Timeout,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = nopClickMetrics{}
	}
	if r.timeout <= 0 {
		r.timeout = defaultRecordTimeout
	}
	return r
}

// Record stores one click event, swallowing any failure.
func (r *ClickRecorder) Record(ctx context.Context, linkID, hashedIP, browser, referrer string) {
	r.store(ctx, &model.ClickEvent{
		ShortLinkID: linkID,
		HashedIP:    hashedIP,
		Browser:     browser,
		Referrer:    referrer,
	})
}

// Persist stores event and reports the outcome so queue consumers can decide
// whether to retry. Only successes are counted; the caller owns the failure.
func (r *ClickRecorder) Persist(ctx context.Context, event *model.ClickEvent) error {
	if err := r.repo.Create(ctx, event); err != nil {
		return err
	}
	r.metrics.ClickRecorded()
	return nil
}

// store is Persist for callers that will not retry.
func (r *ClickRecorder) store(ctx context.Context, event *model.ClickEvent) {
	if err := r.Persist(ctx, event); err != nil {
		r.drop(event.ShortLinkID, dropReason(err), err)
	}
}

// drop counts and logs a click that will never be stored.
func (r *ClickRecorder) drop(linkID, reason string, err error) {
	r.metrics.ClickDropped(reason)
	r.log.Warn("click not recorded",
		zap.String("link_id", linkID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func dropReason(err error) string {
	if errors.Is(err, repository.ErrLinkGone) {
		return "link_gone"
	}
	return "storage"
}

// Submit records click on its own goroutine with a detached, time-bounded
// context so the caller's request lifetime does not cancel the write.
func (r *ClickRecorder) Submit(click model.ClickMessage) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.store(ctx, click.Event())
	}()
}

// Wait blocks until every submitted click has been handled.
func (r *ClickRecorder) Wait() {
	r.wg.Wait()
}

var _ ClickSink = (*ClickRecorder)(nil)
