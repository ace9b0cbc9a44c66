package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"success", nil, DefaultIdleDelay},
		{"server", domain.NewTransportError(domain.KindServer, "new", errors.New("503")), 15 * time.Minute},
		{"response", domain.NewTransportError(domain.KindResponse, "new", errors.New("403")), time.Minute},
		{"request", domain.NewTransportError(domain.KindRequest, "new", errors.New("dial")), time.Minute},
		{"wrapped server", fmt.Errorf("mirror p1: %w", domain.NewTransportError(domain.KindServer, "reply", errors.New("502"))), 15 * time.Minute},
		{"unclassified", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Delay(tt.err); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() on canceled ctx = %v, want context.Canceled", err)
	}
	if err := sleepContext(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext(0) on canceled ctx = %v, want context.Canceled", err)
	}
}
