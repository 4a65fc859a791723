package escrow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/escrow-platform/backend/internal/escrow"
	"github.com/escrow-platform/backend/internal/ledger"
	"github.com/escrow-platform/backend/internal/models"
	"github.com/google/uuid"
)

func TestArenaGetOrPut(t *testing.T) {
	arena := escrow.NewArena()
	id := uuid.New()

	first := escrow.New(models.Contract{ID: id}, escrow.Options{})
	second := escrow.New(models.Contract{ID: id}, escrow.Options{})

	if got := arena.GetOrPut(id, first); got != first {
		t.Fatal("first registration must win")
	}
	if got := arena.GetOrPut(id, second); got != first {
		t.Fatal("second registration must return the existing instance")
	}

	arena.Remove(id)
	if _, ok := arena.Get(id); ok {
		t.Fatal("instance still present after Remove")
	}
}

// Concurrent operations against the same arena entry must serialize on one
// state machine; the escrow address is agreed exactly once.
func TestArenaSingleInstancePerContract(t *testing.T) {
	arena := escrow.NewArena()
	id := uuid.New()
	fake := &ledger.FakeClient{}

	var agreed, rejected sync.Map
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := escrow.New(models.Contract{
				ID:        id,
				Buyer:     buyer,
				Seller:    seller,
				ExpiresAt: escrow.SystemClock{}.Now().Add(time.Hour),
			}, escrow.Options{Ledger: fake})
			c = arena.GetOrPut(id, c)
			if err := c.AgreeOnEscrowAddress(context.Background(), buyer, holder); err != nil {
				rejected.Store(n, err)
			} else {
				agreed.Store(n, true)
			}
		}(i)
	}
	wg.Wait()

	var wins int
	agreed.Range(func(any, any) bool { wins++; return true })
	if wins != 1 {
		t.Fatalf("escrow address agreed %d times, want exactly once", wins)
	}
}
