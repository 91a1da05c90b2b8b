package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/metrics"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
	"github.com/prn-tf/mediahost/internal/schedule"
)

// StreamTTL is how long an upload stream may sit idle before the registry
// expires it.
const StreamTTL = time.Hour

// contentIDLength is the length of generated content identifiers.
const contentIDLength = 8

// entry pairs a live stream with its pending expiry timer.
type entry struct {
	stream *Stream
	timer  *schedule.Handle
}

// Registry is the process-wide table of in-progress uploads, keyed by an
// opaque handle. It owns stream lifecycle: creation with quota checks,
// lookup, finish, abort, and timer-driven expiry. All map mutations happen
// under one mutex, so whichever of a client action and the expiry timer acts
// first performs cleanup and the other observes the handle gone. A handler
// that fetched a stream before the timer fired serializes against the
// cleanup on the stream's own mutex and observes the stream closed.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*entry

	chunks    repository.ChunkRepository
	contents  repository.ContentRepository
	scheduler *schedule.Scheduler
	ttl       time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewRegistry creates an upload stream registry.
func NewRegistry(chunks repository.ChunkRepository, contents repository.ContentRepository, scheduler *schedule.Scheduler, m *metrics.Metrics, logger zerolog.Logger) *Registry {
	return &Registry{
		streams:   make(map[string]*entry),
		chunks:    chunks,
		contents:  contents,
		scheduler: scheduler,
		ttl:       StreamTTL,
		metrics:   m,
		logger:    logger.With().Str("service", "upload-registry").Logger(),
	}
}

// BeginInput declares a new upload.
type BeginInput struct {
	// Owner is the authenticated user the upload belongs to.
	Owner *domain.User

	// FileName is the declared file name, recorded on finish.
	FileName string

	// Privacy is the declared privacy setting.
	Privacy domain.PrivacyType

	// DeclaredTotal is the total upload size in bytes.
	DeclaredTotal int64
}

// BeginOutput is the result of opening a stream.
type BeginOutput struct {
	// Handle is the opaque identifier for subsequent stream calls.
	Handle string

	// ContentID is the identifier the finished content will be served under.
	ContentID string
}

// Begin validates the declared size against the owner's quotas, allocates a
// stream under a fresh handle, and schedules its expiry.
func (r *Registry) Begin(ctx context.Context, in BeginInput) (*BeginOutput, error) {
	if in.DeclaredTotal <= 0 {
		return nil, domain.ErrInvalidDeclaredSize
	}
	if in.DeclaredTotal > in.Owner.MaxFileUpload {
		return nil, domain.NewDomainError(domain.ErrQuotaExceeded, "declared size exceeds per-file limit", in.Owner.Username)
	}

	used, err := r.chunks.TotalSizeByUser(ctx, in.Owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute used quota: %w", err)
	}
	if used+in.DeclaredTotal > in.Owner.MaxTotalUpload {
		return nil, domain.NewDomainError(domain.ErrQuotaExceeded, "declared size exceeds remaining total quota", in.Owner.Username)
	}

	contentID, err := r.generateContentID(ctx)
	if err != nil {
		return nil, err
	}

	fileName := in.FileName
	if fileName == "" {
		fileName = contentID + ".unknown"
	}

	handle := uuid.NewString()
	stream := NewStream(contentID, in.Owner.ID, fileName, in.Privacy, in.DeclaredTotal, r.chunks)

	r.mu.Lock()
	r.streams[handle] = &entry{
		stream: stream,
		timer:  r.scheduler.Schedule(r.ttl, func() { r.expire(handle) }),
	}
	r.mu.Unlock()

	r.metrics.ActiveStreams.Inc()
	r.logger.Info().
		Str("handle", handle).
		Str("content_id", contentID).
		Int64("user_id", in.Owner.ID).
		Int64("declared_total", in.DeclaredTotal).
		Msg("Upload stream opened")

	return &BeginOutput{Handle: handle, ContentID: contentID}, nil
}

// Get returns the live stream for a handle.
func (r *Registry) Get(handle string) (*Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.streams[handle]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return e.stream, nil
}

// Push forwards bytes to the stream behind a handle and records throughput.
func (r *Registry) Push(ctx context.Context, handle string, payload []byte) error {
	stream, err := r.Get(handle)
	if err != nil {
		return err
	}

	if err := stream.Push(ctx, payload); err != nil {
		return err
	}

	r.metrics.BytesReceived.Add(float64(len(payload)))
	return nil
}

// Finish completes an upload: it flushes any residual buffer, writes the
// content metadata row, and removes the stream. Fails with
// domain.ErrStreamIncomplete if not every declared byte has arrived, leaving
// the stream live.
func (r *Registry) Finish(ctx context.Context, handle string) (*domain.Content, error) {
	r.mu.Lock()
	e, ok := r.streams[handle]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrStreamNotFound
	}
	if !e.stream.IsFinished() {
		r.mu.Unlock()
		return nil, domain.ErrStreamIncomplete
	}
	delete(r.streams, handle)
	r.mu.Unlock()

	e.timer.Cancel()

	if err := e.stream.finalize(ctx); err != nil {
		r.reclaimFailedFinish(ctx, handle, e.stream)
		return nil, err
	}

	content := domain.NewContent(e.stream.ContentID(), e.stream.UserID(), e.stream.Privacy(), e.stream.FileName())
	if err := r.contents.Create(ctx, content); err != nil {
		r.reclaimFailedFinish(ctx, handle, e.stream)
		return nil, fmt.Errorf("failed to record content metadata for %s: %w", content.ContentID, err)
	}

	r.metrics.ActiveStreams.Dec()
	r.metrics.StreamsFinished.Inc()
	r.metrics.ChunksFlushed.Add(float64(e.stream.FlushedCount()))
	r.logger.Info().
		Str("handle", handle).
		Str("content_id", content.ContentID).
		Msg("Upload stream finished")

	return content, nil
}

// Abort is explicit client cancellation. It removes the stream and deletes
// its persisted chunks. Aborting an unknown handle is a success no-op, which
// is what a race with the expiry timer looks like from the client's side.
func (r *Registry) Abort(ctx context.Context, handle string) error {
	r.mu.Lock()
	e, ok := r.streams[handle]
	if ok {
		delete(r.streams, handle)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	e.timer.Cancel()
	r.metrics.ActiveStreams.Dec()

	if err := e.stream.discard(ctx); err != nil {
		return fmt.Errorf("failed to discard chunks of aborted stream %s: %w", e.stream.ContentID(), err)
	}

	r.logger.Info().Str("handle", handle).Msg("Upload stream aborted")
	return nil
}

// reclaimFailedFinish drops the chunks of a stream whose finalization failed.
// The entry is already gone from the table, so nothing else would reclaim
// them.
func (r *Registry) reclaimFailedFinish(ctx context.Context, handle string, s *Stream) {
	r.metrics.ActiveStreams.Dec()
	if err := s.discard(ctx); err != nil {
		r.logger.Error().
			Err(err).
			Str("handle", handle).
			Str("content_id", s.ContentID()).
			Msg("Failed to reclaim chunks after failed finish")
	}
}

// Len reports the number of live streams.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Stop cancels every pending expiry timer. In-flight chunks stay persisted;
// unfinished uploads are lost with the process.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for handle, e := range r.streams {
		e.timer.Cancel()
		delete(r.streams, handle)
	}
}

// expire fires from the scheduler after the TTL. An unfinished stream is
// fully rewound; a finished stream that the client never finalized gets its
// residual buffer flushed so the bytes are not lost. Cleanup failures are
// logged, never propagated.
func (r *Registry) expire(handle string) {
	r.mu.Lock()
	e, ok := r.streams[handle]
	if ok {
		delete(r.streams, handle)
	}
	r.mu.Unlock()

	if !ok {
		// Finished or aborted before the timer fired.
		return
	}

	r.metrics.ActiveStreams.Dec()
	r.metrics.StreamsExpired.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if e.stream.IsFinished() {
		if err := e.stream.finalize(ctx); err != nil {
			r.logger.Error().Err(err).Str("handle", handle).Msg("Failed to flush expired stream")
		}
		r.logger.Warn().Str("handle", handle).Str("content_id", e.stream.ContentID()).Msg("Complete stream expired without finalization")
		return
	}

	if err := e.stream.discard(ctx); err != nil {
		r.logger.Error().Err(err).Str("handle", handle).Msg("Failed to reclaim expired stream")
		return
	}

	r.logger.Info().
		Str("handle", handle).
		Str("content_id", e.stream.ContentID()).
		Int64("received", e.stream.Received()).
		Msg("Upload stream expired")
}

// generateContentID draws random 8-character identifiers until one is free.
func (r *Registry) generateContentID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		id, err := crypto.RandomString(contentIDLength, crypto.LowercaseAlphabet+crypto.Digits)
		if err != nil {
			return "", fmt.Errorf("failed to generate content id: %w", err)
		}

		taken, err := r.contents.ExistsByContentID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check content id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a free content id")
}
