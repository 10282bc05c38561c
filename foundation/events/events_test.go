package events_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cloakchain/gateway/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan chain events out to registered channels.")
	{
		t.Logf("\tTest 0:\tWhen sending to a registered channel.")
		{
			evts := events.New()
			ch := evts.Acquire("client")

			evts.Send("block mined")

			select {
			case msg := <-ch:
				if msg != "block mined" {
					t.Fatalf("\t%s\tTest 0:\tShould receive the sent event: got %q.", failed, msg)
				}
			default:
				t.Fatalf("\t%s\tTest 0:\tShould receive the sent event.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould receive the sent event.", success)

			if err := evts.Release("client"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to release the channel: %v", failed, err)
			}
			if err := evts.Release("client"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould reject releasing an unknown id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to release the channel once.", success)
		}

		t.Logf("\tTest 1:\tWhen shutting down while clients are still registering.")
		{
			evts := events.New()
			ch := evts.Acquire("client")

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					evts.Acquire(fmt.Sprintf("late-%d", i))
				}(i)
			}

			evts.Shutdown()
			wg.Wait()

			if _, open := <-ch; open {
				t.Fatalf("\t%s\tTest 1:\tShould close every registered channel.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould close every registered channel.", success)
		}
	}
}
