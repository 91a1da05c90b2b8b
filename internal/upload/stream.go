// Package upload implements the resumable chunked upload pipeline: per-upload
// stream state machines and the process-wide registry that owns them.
package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/repository"
)

// Stream is the per-upload state machine. It buffers incoming bytes and
// flushes fixed-size chunks to durable storage, compressing when that
// actually shrinks the payload.
//
// A Stream is owned by the Registry for its lifetime. Every mutating
// operation takes the stream's own mutex, so a request handler holding a
// stream reference and the expiry timer cannot interleave mid-flush. Once
// the stream is closed by finish, abort, or expiry, later pushes and clears
// fail with domain.ErrStreamNotFound instead of persisting orphan chunks.
type Stream struct {
	mu            sync.Mutex
	contentID     string
	userID        int64
	fileName      string
	privacy       domain.PrivacyType
	declaredTotal int64
	received      int64
	flushedCount  int32
	buffer        []byte
	closed        bool

	chunks repository.ChunkRepository
}

// NewStream creates a stream for a declared upload.
func NewStream(contentID string, userID int64, fileName string, privacy domain.PrivacyType, declaredTotal int64, chunks repository.ChunkRepository) *Stream {
	return &Stream{
		contentID:     contentID,
		userID:        userID,
		fileName:      fileName,
		privacy:       privacy,
		declaredTotal: declaredTotal,
		buffer:        make([]byte, 0, domain.ChunkPayloadSize),
		chunks:        chunks,
	}
}

// ContentID returns the generated content identifier.
func (s *Stream) ContentID() string { return s.contentID }

// UserID returns the owning user's id.
func (s *Stream) UserID() int64 { return s.userID }

// FileName returns the declared file name.
func (s *Stream) FileName() string { return s.fileName }

// Privacy returns the declared privacy setting.
func (s *Stream) Privacy() domain.PrivacyType { return s.privacy }

// Received returns the number of bytes accepted so far.
func (s *Stream) Received() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// DeclaredTotal returns the declared total size of the upload.
func (s *Stream) DeclaredTotal() int64 { return s.declaredTotal }

// FlushedCount returns the number of chunks already persisted.
func (s *Stream) FlushedCount() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushedCount
}

// IsFinished reports whether every declared byte has been received.
func (s *Stream) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received == s.declaredTotal
}

// Push accepts the next slice of upload bytes. It fails with
// domain.ErrStreamOverCapacity, leaving state unchanged, if accepting them
// would exceed the declared total. Whenever the internal buffer reaches the
// chunk bound it is flushed synchronously, so callers must tolerate blocking
// I/O on this call.
func (s *Stream) Push(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStreamNotFound
	}
	if s.received+int64(len(payload)) > s.declaredTotal {
		return domain.ErrStreamOverCapacity
	}

	for len(payload) > 0 {
		room := domain.ChunkPayloadSize - len(s.buffer)
		take := len(payload)
		if take > room {
			take = room
		}

		s.buffer = append(s.buffer, payload[:take]...)
		s.received += int64(take)
		payload = payload[take:]

		if len(s.buffer) == domain.ChunkPayloadSize {
			if err := s.flush(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// Flush persists any buffered bytes as a final, possibly short chunk.
// Called when the stream finishes with a residual buffer.
func (s *Stream) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStreamNotFound
	}
	if len(s.buffer) == 0 {
		return nil
	}
	return s.flush(ctx)
}

// finalize closes the stream and persists any residual buffer. The registry
// calls it on finish; after it returns no push or clear can touch the
// stream's chunk rows again.
func (s *Stream) finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if len(s.buffer) == 0 {
		return nil
	}
	return s.flush(ctx)
}

// discard closes the stream and deletes every persisted chunk. The registry
// calls it on abort, on expiry of an unfinished stream, and when a finish
// fails partway.
func (s *Stream) discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return s.clearLocked(ctx, 0)
}

// flush persists the current buffer as one chunk row and resets the buffer.
// The chunk is stored compressed only when compression strictly reduced its
// size; the flag on the row records which form was stored.
func (s *Stream) flush(ctx context.Context) error {
	compressed, err := compress(s.buffer)
	if err != nil {
		return err
	}

	payload := s.buffer
	stored := false
	if len(compressed) < len(s.buffer) {
		payload = compressed
		stored = true
	}

	chunk := &domain.Chunk{
		ContentID:  s.contentID,
		Index:      s.flushedCount,
		TotalSize:  int64(len(s.buffer)),
		Compressed: stored,
		Payload:    payload,
	}

	if err := s.chunks.Insert(ctx, chunk); err != nil {
		return fmt.Errorf("failed to persist chunk %d of %s: %w", s.flushedCount, s.contentID, err)
	}

	s.flushedCount++
	s.buffer = s.buffer[:0]

	return nil
}

// Clear rewinds the stream: it deletes every persisted chunk with sequence
// index >= sinceIndex, drops the in-memory buffer, and adjusts the received
// count accordingly. A no-op if nothing was persisted past sinceIndex and the
// buffer is already empty.
func (s *Stream) Clear(ctx context.Context, sinceIndex int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStreamNotFound
	}
	return s.clearLocked(ctx, sinceIndex)
}

// clearLocked is Clear's body. Callers hold s.mu.
func (s *Stream) clearLocked(ctx context.Context, sinceIndex int32) error {
	if sinceIndex >= s.flushedCount && len(s.buffer) == 0 {
		return nil
	}

	if sinceIndex < s.flushedCount {
		reclaimed, err := s.chunks.DeleteFrom(ctx, s.contentID, sinceIndex)
		if err != nil {
			return fmt.Errorf("failed to clear chunks of %s: %w", s.contentID, err)
		}
		s.received -= reclaimed
		s.flushedCount = sinceIndex
	}

	s.received -= int64(len(s.buffer))
	s.buffer = s.buffer[:0]

	return nil
}
