// Package scout implements the acquisition workflow: it discovers a new
// project plus work items through the discovery capability and appends them
// to the store, narrating progress on its own bounded feed.
//
// The scout runs independently of the batch pipeline; both only ever append
// or patch disjoint records, so no lock spans the two workflows. At most one
// acquisition runs at a time; re-entry while active is a no-op. Failures are
// cross-reported to the pipeline feed so the operator sees them in either view.
package scout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexusops/internal/logging"
	"nexusops/internal/services/gemini"
	"nexusops/internal/store"
)

// Mode selects how the scout discovers work.
type Mode string

const (
	// ModeFast discovers in a single call, narrating a simulated progress
	// script while it runs.
	ModeFast Mode = "fast"
	// ModeGrounded gathers real-world context first and logs the returned
	// narrative and source URLs.
	ModeGrounded Mode = "grounded"
)

// ParseMode converts a string into a known Mode, defaulting to fast.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeGrounded:
		return ModeGrounded, true
	case ModeFast, "":
		return ModeFast, true
	default:
		return ModeFast, false
	}
}

// Discoverer is the capability the scout consumes.
type Discoverer interface {
	DiscoverFast(ctx context.Context) (gemini.Batch, error)
	DiscoverGrounded(ctx context.Context) (gemini.GroundedBatch, error)
}

// Scout appends discovered batches into the work item store.
type Scout struct {
	store        *store.Store
	discoverer   Discoverer
	feed         *logging.Feed
	workflowFeed *logging.Feed
	logger       *slog.Logger
	narration    Narration
	sleep        func(context.Context, time.Duration) error
	newID        func() string

	mu     sync.Mutex
	active bool
}

// Option configures optional Scout behavior.
type Option func(*Scout)

// WithNarration overrides the fast-mode narration script.
func WithNarration(narration Narration) Option {
	return func(s *Scout) {
		s.narration = narration
	}
}

// WithIDGenerator overrides how fresh record ids are minted (used in tests).
func WithIDGenerator(newID func() string) Option {
	return func(s *Scout) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New constructs a scout. workflowFeed receives cross-reported failures and
// may be nil.
func New(st *store.Store, discoverer Discoverer, feed, workflowFeed *logging.Feed, logger *slog.Logger, opts ...Option) *Scout {
	if logger == nil {
		logger = logging.NewNop()
	}
	scout := &Scout{
		store:        st,
		discoverer:   discoverer,
		feed:         feed,
		workflowFeed: workflowFeed,
		logger:       logger,
		narration:    DefaultNarration(),
		sleep:        sleepContext,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(scout)
	}
	return scout
}

// Active reports whether an acquisition run is in flight.
func (s *Scout) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Feed returns the scout's progress feed.
func (s *Scout) Feed() *logging.Feed {
	return s.feed
}

// Run performs one acquisition. Invoking Run while active is a no-op. The
// active flag is cleared on every exit path.
func (s *Scout) Run(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		s.logger.Warn("acquisition trigger ignored; run already in flight")
		return nil
	}
	s.active = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	s.feed.Append("initializing scout...")

	batch, err := s.discover(ctx, mode)
	if err != nil {
		return s.fail(mode, err)
	}

	project := batch.Project
	project.ID = s.newID()
	now := time.Now().UTC()
	project.CreatedAt = now

	items := make([]store.WorkItem, 0, len(batch.Payloads))
	for _, payload := range batch.Payloads {
		items = append(items, store.WorkItem{
			ID:        s.newID(),
			ProjectID: project.ID,
			Payload:   payload,
			Status:    store.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.store.AppendProject(ctx, project); err != nil {
		return s.fail(mode, err)
	}
	if err := s.store.AppendItems(ctx, items); err != nil {
		return s.fail(mode, err)
	}

	s.feed.Appendf("success: contract secured for %q (%d items)", project.Name, len(items))
	s.logger.Info("acquisition complete",
		logging.String("mode", string(mode)),
		logging.String("project", project.ID),
		logging.Int("items", len(items)),
	)
	return nil
}

func (s *Scout) discover(ctx context.Context, mode Mode) (gemini.Batch, error) {
	switch mode {
	case ModeGrounded:
		s.feed.Append("mode: grounded (live web search)")
		grounded, err := s.discoverer.DiscoverGrounded(ctx)
		if err != nil {
			return gemini.Batch{}, err
		}
		s.feed.Appendf("> context: %s", truncate(grounded.Context, 120))
		if len(grounded.SourceURLs) > 0 {
			s.feed.Append("sources found:")
			for _, url := range grounded.SourceURLs {
				s.feed.Append(url)
			}
		}
		return grounded.Batch, nil
	default:
		s.feed.Append("mode: simulation (fast)")
		for _, step := range s.narration.Steps {
			if err := s.sleep(ctx, s.narration.StepDelay); err != nil {
				return gemini.Batch{}, err
			}
			s.feed.Appendf("> %s", step)
		}
		return s.discoverer.DiscoverFast(ctx)
	}
}

func (s *Scout) fail(mode Mode, err error) error {
	s.feed.Appendf("error: %v", err)
	s.workflowFeed.Appendf("[scout] acquisition failed: %v", err)
	s.logger.Error("acquisition failed",
		logging.String("mode", string(mode)),
		logging.Error(err),
	)
	return err
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
