package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
)

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		Community: "neoliberal",
		Capacity:  10,
		Backoff: Backoff{
			Idle:     time.Millisecond,
			Server:   time.Millisecond,
			Response: time.Millisecond,
			Request:  time.Millisecond,
		},
	}
}

func TestService_StartStopSaves(t *testing.T) {
	forum := newFakeForum()
	repo := &memRepo{image: []domain.TrackedPair{
		{SourceID: "old1", MirrorID: "m1", MirroredAt: time.Now()},
	}}
	svc := NewService(testServiceConfig(), forum, repo, nil, mockLogger{})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if svc.Status() != StateRunning {
		t.Errorf("status = %v, want Running", svc.Status())
	}
	if svc.Store().Len() != 1 || !svc.Store().ContainsSource("old1") {
		t.Error("store not loaded from repository")
	}
	if svc.Clock().IsZero() {
		t.Error("clock not captured")
	}
	if err := svc.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if svc.Status() != StateStopped {
		t.Errorf("status = %v, want Stopped", svc.Status())
	}
	if repo.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", repo.saveCount())
	}
	select {
	case <-svc.Done():
	default:
		t.Error("Done() not closed after Stop")
	}
	if err := svc.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("second Stop() = %v, want ErrNotRunning", err)
	}
}

func TestService_CorruptImageStartsEmpty(t *testing.T) {
	repo := &memRepo{loadErr: domain.ErrCorruptState}
	svc := NewService(testServiceConfig(), newFakeForum(), repo, nil, mockLogger{})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	if svc.Store().Len() != 0 {
		t.Errorf("tracked = %d, want 0", svc.Store().Len())
	}
}

func TestService_UnclassifiedErrorCrashes(t *testing.T) {
	forum := newFakeForum()
	forum.userPosts = []domain.Post{thread("th1")}
	forum.replyErr = errors.New("boom")
	svc := NewService(testServiceConfig(), forum, &memRepo{}, nil, mockLogger{})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	forum.newPosts = [][]domain.Post{{post("p1", time.Now())}}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-svc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop did not end")
	}
	if svc.Status() != StateCrashed {
		t.Fatalf("status = %v, want Crashed", svc.Status())
	}
	if svc.Err() == nil {
		t.Error("Err() = nil after crash")
	}

	// a crashed service can still be stopped, which saves
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestService_StopBeforeStart(t *testing.T) {
	svc := NewService(testServiceConfig(), newFakeForum(), &memRepo{}, nil, mockLogger{})
	if err := svc.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() = %v, want ErrNotRunning", err)
	}
}
