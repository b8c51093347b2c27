package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryBank_SessionLocksAreReleased(t *testing.T) {
	t.Parallel()

	bank := NewMemoryBank(NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", i)
			if _, err := bank.UpdateRoadmap(ctx, sessionID, []string{"one"}); err != nil {
				t.Errorf("UpdateRoadmap(%s) error = %v", sessionID, err)
			}
			if err := bank.Reset(ctx, sessionID); err != nil {
				t.Errorf("Reset(%s) error = %v", sessionID, err)
			}
		}()
	}
	wg.Wait()

	if n := bank.locks.Len(); n != 0 {
		t.Errorf("%d session locks left after all work finished", n)
	}
}
