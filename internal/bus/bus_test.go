package bus

import (
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
)

func testCandleMsg() NewClosedCandle {
	return NewClosedCandle{
		Header: Header{From: "test", Time: time.Now()},
		Candle: models.Candle{Time: 1, Open: 1, High: 2, Low: 1, Close: 2, Volume: 1, Closed: true},
	}
}

func TestSendDelivers(t *testing.T) {
	b := New(nil)
	got := 0
	b.Register(KindNewClosedCandle, func(m Message) {
		if m.Kind() != KindNewClosedCandle {
			t.Fatalf("unexpected kind %s", m.Kind())
		}
		got++
	})
	b.Send(testCandleMsg())
	b.Send(testCandleMsg())
	if got != 2 {
		t.Fatalf("delivered %d, want 2", got)
	}
}

func TestRegistrationOrder(t *testing.T) {
	b := New(nil)
	var order []int
	b.Register(KindNewClosedCandle, func(Message) { order = append(order, 1) })
	b.Register(KindNewClosedCandle, func(Message) { order = append(order, 2) })
	b.Send(testCandleMsg())
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("dispatch order = %v", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	got := 0
	unsub := b.Register(KindNewClosedCandle, func(Message) { got++ })
	b.Send(testCandleMsg())
	unsub()
	unsub() // second call is a no-op
	b.Send(testCandleMsg())
	if got != 1 {
		t.Fatalf("delivered %d after unsubscribe, want 1", got)
	}
}

func TestKindIsolation(t *testing.T) {
	b := New(nil)
	got := 0
	b.Register(KindNewSignal, func(Message) { got++ })
	b.Send(testCandleMsg())
	if got != 0 {
		t.Fatalf("handler for other kind invoked")
	}
}

func TestPanicDoesNotStopDispatch(t *testing.T) {
	b := New(nil)
	got := 0
	b.Register(KindNewClosedCandle, func(Message) { panic("boom") })
	b.Register(KindNewClosedCandle, func(Message) { got++ })
	b.Send(testCandleMsg())
	if got != 1 {
		t.Fatalf("handler after panicking one not invoked")
	}
}

func TestSendAfterClose(t *testing.T) {
	b := New(nil)
	got := 0
	b.Register(KindNewClosedCandle, func(Message) { got++ })
	b.Close()
	b.Send(testCandleMsg())
	if got != 0 {
		t.Fatalf("send after close delivered")
	}
}
