package translator

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/locks"
)

type coordinatorFixture struct {
	coordinator *DetectionCoordinator
	store       *stubStore
	provider    *stubProvider
	publisher   *stubPublisher
	mock        redismock.ClientMock
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	client, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet redis expectations: %v", err)
		}
	})

	store := newStubStore()
	provider := newStubProvider("local")
	provider.detectLang = "fr"
	registry := NewRegistry()
	registry.Register(provider)
	publisher := &stubPublisher{}
	locker := locks.NewLocker(client, 30*time.Second)
	coordinator := NewDetectionCoordinator(store, registry, locker, publisher, zerolog.Nop(), 20*time.Second)
	return &coordinatorFixture{
		coordinator: coordinator,
		store:       store,
		provider:    provider,
		publisher:   publisher,
		mock:        mock,
	}
}

func (f *coordinatorFixture) addPost(post *db.PostRecord) *db.PostRecord {
	f.store.posts[post.PostUUID] = post
	return post
}

func (f *coordinatorFixture) expectLease(post *db.PostRecord, acquired bool) {
	key := "polyglot:lock:detect:" + post.PostUUID
	f.mock.Regexp().ExpectSetNX(key, `[0-9a-f]{32}`, 30*time.Second).SetVal(acquired)
	if acquired {
		f.mock.Regexp().ExpectEval(`.*`, []string{key}, `[0-9a-f]{32}`).SetVal(int64(1))
	}
}

func TestProcessDetectionStoresResult(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	f.expectLease(post, true)

	if err := f.coordinator.ProcessDetection(context.Background(), enabledSettings(), post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.detectCalls != 1 {
		t.Fatalf("detect calls = %d, want 1", f.provider.detectCalls)
	}
	detection := f.store.detections[post.PostID]
	if detection == nil || detection.DetectedLang != "fr" {
		t.Fatalf("detection = %+v, want fr", detection)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].DetectedLang != "fr" {
		t.Fatalf("events = %+v, want one fr event", f.publisher.events)
	}
}

func TestProcessDetectionInFlightElsewhereIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	f.expectLease(post, false)

	if err := f.coordinator.ProcessDetection(context.Background(), enabledSettings(), post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.detectCalls != 0 {
		t.Fatalf("detect must not run while another process holds the lease")
	}
	if len(f.store.upsertedDetections) != 0 {
		t.Fatalf("nothing must be stored without the lease")
	}
}

func TestProcessDetectionCurrentRevisionIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	f.store.detections[post.PostID] = &db.DetectionRecord{
		PostID:       post.PostID,
		DetectedLang: "fr",
		ProviderName: "local",
		PostRevision: post.Revision,
	}

	if err := f.coordinator.ProcessDetection(context.Background(), enabledSettings(), post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.detectCalls != 0 {
		t.Fatalf("detect must not run when the detection is current")
	}
}

func TestProcessDetectionDisabledIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	settings := enabledSettings()
	settings.Enabled = false

	if err := f.coordinator.ProcessDetection(context.Background(), settings, post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.detectCalls != 0 {
		t.Fatalf("detect must not run while translation is disabled")
	}
}

func TestProcessDetectionMissingPostIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)

	err := f.coordinator.ProcessDetection(context.Background(), enabledSettings(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessDetectionExcludedCategoryIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	settings := enabledSettings()
	settings.ExcludedCategories = []int64{post.CategoryID}

	if err := f.coordinator.ProcessDetection(context.Background(), settings, post.PostUUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.detectCalls != 0 {
		t.Fatalf("detect must not run for excluded categories")
	}
}

func TestProcessDetectionProviderFailureIsSwallowed(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	f.expectLease(post, true)
	f.provider.detectErr = &ProviderError{
		Provider: "local",
		Kind:     ProviderUnavailable,
		Message:  "connection refused",
	}

	if err := f.coordinator.ProcessDetection(context.Background(), enabledSettings(), post.PostUUID); err != nil {
		t.Fatalf("provider failures must not propagate, got %v", err)
	}
	if len(f.store.upsertedDetections) != 0 {
		t.Fatalf("nothing must be stored on provider failure")
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("no event must be published on provider failure")
	}
}

func TestProcessDetectionUnknownProviderIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)
	post := f.addPost(frenchPost())
	f.expectLease(post, true)
	settings := enabledSettings()
	settings.Provider = "bing"

	if err := f.coordinator.ProcessDetection(context.Background(), settings, post.PostUUID); err != nil {
		t.Fatalf("unknown provider must abort silently, got %v", err)
	}
	if len(f.store.upsertedDetections) != 0 {
		t.Fatalf("nothing must be stored for an unknown provider")
	}
}
