package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []Event
	bus.Subscribe(TransactionRealized, func(e Event) {
		got = append(got, e)
	})

	bus.Emit(TransactionRealized, "recurring", map[string]interface{}{"rule_id": "r1"})
	bus.Emit(BackupCompleted, "backup", nil)

	require.Len(t, got, 1)
	assert.Equal(t, TransactionRealized, got[0].Type)
	assert.Equal(t, "recurring", got[0].Module)
	assert.Equal(t, "r1", got[0].Data["rule_id"])
}

func TestBus_ListenStreamsAllTypes(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, unsubscribe := bus.Listen()
	defer unsubscribe()

	bus.Emit(TransferRealized, "recurring", nil)
	bus.Emit(PastDueDigest, "scheduler", map[string]interface{}{"count": 3})

	e1 := <-ch
	e2 := <-ch
	assert.Equal(t, TransferRealized, e1.Type)
	assert.Equal(t, PastDueDigest, e2.Type)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, unsubscribe := bus.Listen()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// Emitting after unsubscribe must not panic.
	bus.Emit(ErrorOccurred, "test", nil)
}

func TestBus_ConcurrentEmitAndUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	// Emits racing unsubscribes must never send on a closed channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			bus.Emit(TransactionRealized, "recurring", nil)
		}
	}()

	for i := 0; i < 200; i++ {
		ch, unsubscribe := bus.Listen()
		go func() {
			for range ch {
			}
		}()
		unsubscribe()
	}
	<-done
}
