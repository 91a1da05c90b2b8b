package upload

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/metrics"
	"github.com/prn-tf/mediahost/internal/schedule"
)

type registryFixture struct {
	registry *Registry
	chunks   *MemChunkRepository
	contents *MemContentRepository
	owner    *domain.User
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()

	chunks := NewMemChunkRepository()
	contents := NewMemContentRepository()

	scheduler := schedule.NewScheduler(zerolog.Nop())
	t.Cleanup(scheduler.Stop)

	registry := NewRegistry(chunks, contents, scheduler, metrics.New(prometheus.NewRegistry()), zerolog.Nop())
	t.Cleanup(registry.Stop)

	return &registryFixture{
		registry: registry,
		chunks:   chunks,
		contents: contents,
		owner: &domain.User{
			ID:             1,
			Username:       "alice1",
			MaxFileUpload:  100_000_000,
			MaxTotalUpload: 1_000_000_000,
		},
	}
}

func TestRegistryBeginValidation(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	tests := []struct {
		name    string
		input   BeginInput
		wantErr error
	}{
		{
			name:    "zero declared size",
			input:   BeginInput{Owner: f.owner, FileName: "a.txt", Privacy: domain.PrivacyPublic, DeclaredTotal: 0},
			wantErr: domain.ErrInvalidDeclaredSize,
		},
		{
			name:    "negative declared size",
			input:   BeginInput{Owner: f.owner, FileName: "a.txt", Privacy: domain.PrivacyPublic, DeclaredTotal: -5},
			wantErr: domain.ErrInvalidDeclaredSize,
		},
		{
			name:    "over per-file quota",
			input:   BeginInput{Owner: f.owner, FileName: "a.txt", Privacy: domain.PrivacyPublic, DeclaredTotal: 100_000_001},
			wantErr: domain.ErrQuotaExceeded,
		},
		{
			name:    "within quota",
			input:   BeginInput{Owner: f.owner, FileName: "a.txt", Privacy: domain.PrivacyPublic, DeclaredTotal: 1000},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.registry.Begin(ctx, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Begin() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			if out.Handle == "" {
				t.Error("expected a non-empty handle")
			}
			if len(out.ContentID) != contentIDLength {
				t.Errorf("ContentID length = %d, want %d", len(out.ContentID), contentIDLength)
			}
		})
	}
}

func TestRegistryBeginTotalQuota(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	// The mock repository counts every stored chunk against the user.
	if err := f.chunks.Insert(ctx, &domain.Chunk{ContentID: "existing1", Index: 0, TotalSize: 999_999_500}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	_, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "a.txt",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 1000,
	})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("Begin() error = %v, want ErrQuotaExceeded", err)
	}

	// The remaining 500 bytes are still allowed.
	if _, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "a.txt",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 500,
	}); err != nil {
		t.Fatalf("Begin() at exact quota: %v", err)
	}
}

func TestRegistryBeginDefaultFileName(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	out, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 10,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	stream, err := f.registry.Get(out.Handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := out.ContentID + ".unknown"; stream.FileName() != want {
		t.Errorf("FileName = %q, want %q", stream.FileName(), want)
	}
}

func TestRegistryGetUnknownHandle(t *testing.T) {
	f := newRegistryFixture(t)

	if _, err := f.registry.Get("no-such-handle"); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("Get() error = %v, want ErrStreamNotFound", err)
	}
}

func TestRegistryFinish(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	out, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "clip.mp4",
		Privacy:       domain.PrivacyPrivate,
		DeclaredTotal: 1000,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := f.registry.Push(ctx, out.Handle, repeating(400)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// Not every declared byte has arrived; the stream must stay live.
	if _, err := f.registry.Finish(ctx, out.Handle); !errors.Is(err, domain.ErrStreamIncomplete) {
		t.Fatalf("Finish() error = %v, want ErrStreamIncomplete", err)
	}
	if _, err := f.registry.Get(out.Handle); err != nil {
		t.Fatalf("stream gone after incomplete finish: %v", err)
	}

	if err := f.registry.Push(ctx, out.Handle, repeating(600)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	content, err := f.registry.Finish(ctx, out.Handle)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if content.ContentID != out.ContentID {
		t.Errorf("ContentID = %q, want %q", content.ContentID, out.ContentID)
	}
	if content.UserID != f.owner.ID {
		t.Errorf("UserID = %d, want %d", content.UserID, f.owner.ID)
	}
	if content.Privacy != domain.PrivacyPrivate {
		t.Errorf("Privacy = %v, want private", content.Privacy)
	}
	if content.FileName != "clip.mp4" {
		t.Errorf("FileName = %q, want clip.mp4", content.FileName)
	}

	if _, err := f.contents.GetByContentID(ctx, out.ContentID); err != nil {
		t.Errorf("content metadata not persisted: %v", err)
	}
	if f.chunks.count(out.ContentID) != 1 {
		t.Errorf("stored chunks = %d, want 1", f.chunks.count(out.ContentID))
	}

	// The handle is gone after a successful finish.
	if _, err := f.registry.Finish(ctx, out.Handle); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("second Finish() error = %v, want ErrStreamNotFound", err)
	}
	if f.registry.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.registry.Len())
	}
}

func TestRegistryAbort(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	// Unknown handles abort cleanly.
	if err := f.registry.Abort(ctx, "no-such-handle"); err != nil {
		t.Fatalf("Abort of unknown handle: %v", err)
	}

	out, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "big.bin",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 2 * domain.ChunkPayloadSize,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.registry.Push(ctx, out.Handle, repeating(domain.ChunkPayloadSize)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if f.chunks.count(out.ContentID) != 1 {
		t.Fatalf("stored chunks = %d, want 1", f.chunks.count(out.ContentID))
	}

	if err := f.registry.Abort(ctx, out.Handle); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if f.chunks.count(out.ContentID) != 0 {
		t.Errorf("stored chunks after abort = %d, want 0", f.chunks.count(out.ContentID))
	}
	if _, err := f.registry.Get(out.Handle); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("Get() after abort error = %v, want ErrStreamNotFound", err)
	}
}

func TestRegistryExpireReclaimsAndClosesStream(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	out, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "stale.bin",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 2 * domain.ChunkPayloadSize,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.registry.Push(ctx, out.Handle, repeating(domain.ChunkPayloadSize)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// A handler may hold a stream reference across the expiry instant.
	stream, err := f.registry.Get(out.Handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	f.registry.expire(out.Handle)

	if f.chunks.count(out.ContentID) != 0 {
		t.Errorf("stored chunks after expiry = %d, want 0", f.chunks.count(out.ContentID))
	}
	if f.registry.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.registry.Len())
	}

	// The retained reference must not revive the stream or persist chunks.
	if err := stream.Push(ctx, repeating(10)); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Errorf("Push on expired stream error = %v, want ErrStreamNotFound", err)
	}
	if err := stream.Clear(ctx, 0); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Errorf("Clear on expired stream error = %v, want ErrStreamNotFound", err)
	}
	if f.chunks.count(out.ContentID) != 0 {
		t.Errorf("stored chunks after stale push = %d, want 0", f.chunks.count(out.ContentID))
	}
}

func TestRegistryConcurrentPushAndExpire(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	out, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "race.bin",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 6 * domain.ChunkPayloadSize,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			if err := f.registry.Push(ctx, out.Handle, repeating(domain.ChunkPayloadSize)); err != nil {
				if !errors.Is(err, domain.ErrStreamNotFound) {
					t.Errorf("Push: %v", err)
				}
				return
			}
		}
	}()

	f.registry.expire(out.Handle)
	wg.Wait()

	if f.chunks.count(out.ContentID) != 0 {
		t.Errorf("stored chunks after expiry = %d, want 0", f.chunks.count(out.ContentID))
	}
	if f.registry.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.registry.Len())
	}
}

// failingContentRepository rejects metadata writes to exercise the finish
// failure path.
type failingContentRepository struct {
	*MemContentRepository
	createErr error
}

func (f *failingContentRepository) Create(ctx context.Context, content *domain.Content) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.MemContentRepository.Create(ctx, content)
}

func TestRegistryFinishFailureReclaimsChunks(t *testing.T) {
	ctx := context.Background()

	chunks := NewMemChunkRepository()
	contents := &failingContentRepository{
		MemContentRepository: NewMemContentRepository(),
		createErr:            errors.New("metadata store down"),
	}

	scheduler := schedule.NewScheduler(zerolog.Nop())
	t.Cleanup(scheduler.Stop)

	registry := NewRegistry(chunks, contents, scheduler, metrics.New(prometheus.NewRegistry()), zerolog.Nop())
	t.Cleanup(registry.Stop)

	owner := &domain.User{ID: 1, Username: "alice1", MaxFileUpload: 100_000_000, MaxTotalUpload: 1_000_000_000}

	out, err := registry.Begin(ctx, BeginInput{
		Owner:         owner,
		FileName:      "doomed.bin",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 1000,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := registry.Push(ctx, out.Handle, repeating(1000)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if _, err := registry.Finish(ctx, out.Handle); err == nil {
		t.Fatal("Finish succeeded with a failing metadata store")
	}

	// No metadata row exists, so the chunks must be reclaimed too.
	if chunks.count(out.ContentID) != 0 {
		t.Errorf("stored chunks after failed finish = %d, want 0", chunks.count(out.ContentID))
	}
	if registry.Len() != 0 {
		t.Errorf("Len = %d, want 0", registry.Len())
	}
	if err := registry.Push(ctx, out.Handle, repeating(10)); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Errorf("Push after failed finish error = %v, want ErrStreamNotFound", err)
	}
}

func TestRegistryConcurrentAbort(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t)

	out, err := f.registry.Begin(ctx, BeginInput{
		Owner:         f.owner,
		FileName:      "race.bin",
		Privacy:       domain.PrivacyPublic,
		DeclaredTotal: 1000,
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.registry.Abort(ctx, out.Handle); err != nil {
				t.Errorf("Abort: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.registry.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.registry.Len())
	}
}
