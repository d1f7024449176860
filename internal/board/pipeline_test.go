package board

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/initboard/internal/domain"
)

func TestPipelineCommitSuccess(t *testing.T) {
	store := NewStore(sampleBoard())
	persister := &fakePersister{}
	notices := &noticeRecorder{}
	dataChanges := 0
	pipeline := NewPipeline(store, persister, WithNotifier(notices), WithDataChange(func() { dataChanges++ }))

	flight, err := pipeline.Commit(store.Tasks(), "T1", domain.StatusProgress, 0)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if ids := taskIDs(store.Tasks()); !slices.Equal(ids, []string{"T2", "T1", "T3"}) {
		t.Fatalf("expected optimistic order, got %v", ids)
	}
	if !store.InFlight() {
		t.Fatal("expected commit to be in flight")
	}
	if dataChanges != 0 {
		t.Fatal("expected no data change before persistence resolves")
	}

	if err := flight.Persist(context.Background()); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if err := flight.Persist(context.Background()); err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}
	if persister.callCount() != 1 {
		t.Fatalf("expected one bulk update, got %d", persister.callCount())
	}
	if ids := taskIDs(persister.calls[0]); !slices.Equal(ids, []string{"T2", "T1", "T3"}) {
		t.Fatalf("unexpected persisted order %v", ids)
	}
	if dataChanges != 1 {
		t.Fatalf("expected exactly one data change, got %d", dataChanges)
	}
	if got := notices.levels(); !slices.Equal(got, []NoticeLevel{NoticeSuccess}) {
		t.Fatalf("unexpected notices %v", got)
	}
	if ids := taskIDs(store.Tasks()); !slices.Equal(ids, []string{"T2", "T1", "T3"}) {
		t.Fatalf("expected optimistic order to stick, got %v", ids)
	}
	select {
	case <-flight.Done():
	default:
		t.Fatal("expected flight to be done")
	}
}

func TestPipelinePersistFailureRevertsToSnapshot(t *testing.T) {
	original := sampleBoard()
	store := NewStore(original)
	persister := &fakePersister{err: errors.New("network down")}
	notices := &noticeRecorder{}
	dataChanges := 0
	pipeline := NewPipeline(store, persister, WithNotifier(notices), WithDataChange(func() { dataChanges++ }))

	flight, err := pipeline.Commit(store.Tasks(), "T1", domain.StatusDone, 0)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if store.Tasks()[2].ID != "T1" {
		t.Fatalf("expected optimistic move, got %v", taskIDs(store.Tasks()))
	}

	err = flight.Persist(context.Background())
	if err == nil || !errors.Is(err, persister.err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !equalTasks(store.Tasks(), original) {
		t.Fatalf("expected revert to original, got %v", taskIDs(store.Tasks()))
	}
	if dataChanges != 0 {
		t.Fatalf("expected no data change, got %d", dataChanges)
	}
	if got := notices.levels(); !slices.Equal(got, []NoticeLevel{NoticeError}) {
		t.Fatalf("unexpected notices %v", got)
	}
	if persister.callCount() != 1 {
		t.Fatalf("expected no retry, got %d calls", persister.callCount())
	}
	if store.InFlight() {
		t.Fatal("expected flight to be settled")
	}
}

func TestPipelineReorderFailureRestoresAndSkipsPersistence(t *testing.T) {
	store := NewStore(sampleBoard())
	persister := &fakePersister{}
	notices := &noticeRecorder{}
	pipeline := NewPipeline(store, persister, WithNotifier(notices))

	previous := sampleBoard()
	_, err := pipeline.Commit(previous, "ghost", domain.StatusDone, 0)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if persister.callCount() != 0 {
		t.Fatal("expected no persistence call")
	}
	if !equalTasks(store.Tasks(), previous) {
		t.Fatalf("expected store restored, got %v", taskIDs(store.Tasks()))
	}
	if got := notices.levels(); !slices.Equal(got, []NoticeLevel{NoticeError}) {
		t.Fatalf("unexpected notices %v", got)
	}
}

func TestPipelineNilPersisterFailsAndReverts(t *testing.T) {
	store := NewStore(sampleBoard())
	pipeline := NewPipeline(store, nil)
	if err := pipeline.Move(context.Background(), "T1", domain.StatusDone, 0); err == nil {
		t.Fatal("expected error without persister")
	}
	if !equalTasks(store.Tasks(), sampleBoard()) {
		t.Fatalf("expected revert, got %v", taskIDs(store.Tasks()))
	}
}

func TestPipelineDefersUpstreamSyncUntilSettled(t *testing.T) {
	store := NewStore(sampleBoard())
	persister := &fakePersister{block: make(chan struct{})}
	pipeline := NewPipeline(store, persister)

	flight, err := pipeline.Commit(store.Tasks(), "T1", domain.StatusProgress, 0)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- flight.Persist(context.Background()) }()

	fresh := append(sampleBoard(), task("T4", domain.StatusDone))
	if store.Sync(fresh) {
		t.Fatal("expected sync to be deferred while in flight")
	}
	if ids := taskIDs(store.Tasks()); !slices.Equal(ids, []string{"T2", "T1", "T3"}) {
		t.Fatalf("expected optimistic list to remain, got %v", ids)
	}

	close(persister.block)
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for persist")
	}
	if ids := taskIDs(store.Tasks()); !slices.Equal(ids, []string{"T1", "T2", "T3", "T4"}) {
		t.Fatalf("expected deferred list applied, got %v", ids)
	}
	if !store.Sync(sampleBoard()) {
		t.Fatal("expected immediate sync once idle")
	}
}

func TestPipelineCancelledContextReverts(t *testing.T) {
	store := NewStore(sampleBoard())
	persister := &fakePersister{block: make(chan struct{})}
	pipeline := NewPipeline(store, persister)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pipeline.Move(ctx, "T2", domain.StatusDone, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !equalTasks(store.Tasks(), sampleBoard()) {
		t.Fatalf("expected revert, got %v", taskIDs(store.Tasks()))
	}
}
