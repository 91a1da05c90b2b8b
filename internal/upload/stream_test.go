package upload

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/prn-tf/mediahost/internal/domain"
)

// =============================================================================
// In-memory repositories
// =============================================================================

// MemChunkRepository is an in-memory repository.ChunkRepository.
type MemChunkRepository struct {
	mu     sync.Mutex
	chunks map[string][]*domain.Chunk
}

func NewMemChunkRepository() *MemChunkRepository {
	return &MemChunkRepository{chunks: make(map[string][]*domain.Chunk)}
}

func (m *MemChunkRepository) Insert(ctx context.Context, chunk *domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *chunk
	c.Payload = append([]byte(nil), chunk.Payload...)
	m.chunks[chunk.ContentID] = append(m.chunks[chunk.ContentID], &c)
	return nil
}

func (m *MemChunkRepository) GetByIndex(ctx context.Context, contentID string, index int32) (*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chunks[contentID] {
		if c.Index == index {
			return c, nil
		}
	}
	return nil, domain.ErrContentNotFound
}

func (m *MemChunkRepository) ListByContentID(ctx context.Context, contentID string) ([]*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*domain.Chunk(nil), m.chunks[contentID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *MemChunkRepository) DeleteFrom(ctx context.Context, contentID string, sinceIndex int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.Chunk
	var reclaimed int64
	for _, c := range m.chunks[contentID] {
		if c.Index >= sinceIndex {
			reclaimed += c.TotalSize
		} else {
			kept = append(kept, c)
		}
	}
	m.chunks[contentID] = kept
	return reclaimed, nil
}

func (m *MemChunkRepository) TotalSizeByUser(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, chunks := range m.chunks {
		for _, c := range chunks {
			total += c.TotalSize
		}
	}
	return total, nil
}

func (m *MemChunkRepository) count(contentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks[contentID])
}

// MemContentRepository is an in-memory repository.ContentRepository.
type MemContentRepository struct {
	mu       sync.Mutex
	contents map[string]*domain.Content
}

func NewMemContentRepository() *MemContentRepository {
	return &MemContentRepository{contents: make(map[string]*domain.Content)}
}

func (m *MemContentRepository) Create(ctx context.Context, content *domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[content.ContentID] = content
	return nil
}

func (m *MemContentRepository) GetByContentID(ctx context.Context, contentID string) (*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contents[contentID]; ok {
		return c, nil
	}
	return nil, domain.ErrContentNotFound
}

func (m *MemContentRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Content
	for _, c := range m.contents {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemContentRepository) Update(ctx context.Context, content *domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[content.ContentID] = content
	return nil
}

func (m *MemContentRepository) Delete(ctx context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contents, contentID)
	return nil
}

func (m *MemContentRepository) ExistsByContentID(ctx context.Context, contentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contents[contentID]
	return ok, nil
}

// =============================================================================
// Stream tests
// =============================================================================

// repeating produces n bytes of a compressible pattern.
func repeating(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte('a' + i%13)
	}
	return payload
}

func TestStreamPushFlushesAtChunkBound(t *testing.T) {
	ctx := context.Background()
	chunks := NewMemChunkRepository()

	total := int64(30_000_000)
	stream := NewStream("abc12345", 1, "video.mp4", domain.PrivacyPublic, total, chunks)

	payload := repeating(int(total))
	if err := stream.Push(ctx, payload); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if !stream.IsFinished() {
		t.Error("expected the stream to be finished")
	}
	if stream.Received() != total {
		t.Errorf("Received = %d, want %d", stream.Received(), total)
	}

	// 30,000,000 bytes cross the chunk bound exactly once.
	if stream.FlushedCount() != 1 {
		t.Errorf("FlushedCount = %d, want 1", stream.FlushedCount())
	}

	if err := stream.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stream.FlushedCount() != 2 {
		t.Errorf("FlushedCount after residual flush = %d, want 2", stream.FlushedCount())
	}

	stored, err := chunks.ListByContentID(ctx, "abc12345")
	if err != nil {
		t.Fatalf("ListByContentID: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(stored))
	}
	if stored[0].TotalSize != domain.ChunkPayloadSize {
		t.Errorf("first chunk TotalSize = %d, want %d", stored[0].TotalSize, domain.ChunkPayloadSize)
	}
	if stored[1].TotalSize != total-domain.ChunkPayloadSize {
		t.Errorf("second chunk TotalSize = %d, want %d", stored[1].TotalSize, total-domain.ChunkPayloadSize)
	}

	// The repeating pattern compresses well, so both chunks store gzip.
	for _, c := range stored {
		if !c.Compressed {
			t.Errorf("chunk %d: expected compressed storage", c.Index)
		}
		if int64(len(c.Payload)) >= c.TotalSize {
			t.Errorf("chunk %d: compressed payload not smaller than raw", c.Index)
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	chunks := NewMemChunkRepository()

	original := repeating(20_000_000)
	stream := NewStream("rt000001", 1, "blob.bin", domain.PrivacyPublic, int64(len(original)), chunks)

	// Push in uneven slices.
	for offset, size := 0, 1; offset < len(original); offset += size {
		size = 3_000_000 + offset%1_000_000
		end := offset + size
		if end > len(original) {
			end = len(original)
		}
		if err := stream.Push(ctx, original[offset:end]); err != nil {
			t.Fatalf("Push at %d: %v", offset, err)
		}
	}
	if err := stream.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stored, err := chunks.ListByContentID(ctx, "rt000001")
	if err != nil {
		t.Fatalf("ListByContentID: %v", err)
	}

	var rebuilt []byte
	for _, c := range stored {
		payload := c.Payload
		if c.Compressed {
			payload, err = Decompress(payload)
			if err != nil {
				t.Fatalf("Decompress chunk %d: %v", c.Index, err)
			}
		}
		rebuilt = append(rebuilt, payload...)
	}

	if !bytes.Equal(rebuilt, original) {
		t.Error("reassembled bytes differ from the original")
	}
}

func TestStreamIncompressiblePayloadStoredRaw(t *testing.T) {
	ctx := context.Background()
	chunks := NewMemChunkRepository()

	// High-entropy payload: every byte value cycling with a stride that
	// defeats gzip's window. Use a pseudo-random fill.
	payload := make([]byte, 1_000_000)
	state := uint32(0x12345678)
	for i := range payload {
		state = state*1664525 + 1013904223
		payload[i] = byte(state >> 24)
	}

	stream := NewStream("raw00001", 1, "noise.bin", domain.PrivacyPublic, int64(len(payload)), chunks)
	if err := stream.Push(ctx, payload); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := stream.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stored, err := chunks.ListByContentID(ctx, "raw00001")
	if err != nil {
		t.Fatalf("ListByContentID: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(stored))
	}
	if stored[0].Compressed {
		t.Error("expected incompressible payload to be stored raw")
	}
	if !bytes.Equal(stored[0].Payload, payload) {
		t.Error("raw payload was altered")
	}
}

func TestStreamOverCapacityLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	chunks := NewMemChunkRepository()

	stream := NewStream("cap00001", 1, "small.txt", domain.PrivacyPublic, 100, chunks)
	if err := stream.Push(ctx, repeating(60)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	err := stream.Push(ctx, repeating(41))
	if !errors.Is(err, domain.ErrStreamOverCapacity) {
		t.Fatalf("expected ErrStreamOverCapacity, got %v", err)
	}
	if stream.Received() != 60 {
		t.Errorf("Received = %d, want 60 after rejected push", stream.Received())
	}

	// The exact remaining amount still fits.
	if err := stream.Push(ctx, repeating(40)); err != nil {
		t.Fatalf("Push of exact remainder: %v", err)
	}
	if !stream.IsFinished() {
		t.Error("expected the stream to be finished")
	}
}

func TestStreamClear(t *testing.T) {
	ctx := context.Background()
	chunks := NewMemChunkRepository()

	total := int64(2*domain.ChunkPayloadSize + 1000)
	stream := NewStream("clr00001", 1, "big.bin", domain.PrivacyPublic, total, chunks)

	if err := stream.Push(ctx, repeating(int(total))); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if stream.FlushedCount() != 2 {
		t.Fatalf("FlushedCount = %d, want 2", stream.FlushedCount())
	}

	// Rewind to chunk 1: the second chunk and the buffered tail go away.
	if err := stream.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear(1): %v", err)
	}
	if stream.FlushedCount() != 1 {
		t.Errorf("FlushedCount = %d, want 1", stream.FlushedCount())
	}
	if stream.Received() != domain.ChunkPayloadSize {
		t.Errorf("Received = %d, want %d", stream.Received(), domain.ChunkPayloadSize)
	}
	if chunks.count("clr00001") != 1 {
		t.Errorf("stored chunks = %d, want 1", chunks.count("clr00001"))
	}

	// Full rewind.
	if err := stream.Clear(ctx, 0); err != nil {
		t.Fatalf("Clear(0): %v", err)
	}
	if stream.Received() != 0 {
		t.Errorf("Received = %d, want 0", stream.Received())
	}
	if chunks.count("clr00001") != 0 {
		t.Errorf("stored chunks = %d, want 0", chunks.count("clr00001"))
	}

	// Clearing an already-empty stream is a no-op.
	if err := stream.Clear(ctx, 0); err != nil {
		t.Fatalf("Clear on empty stream: %v", err)
	}
}
