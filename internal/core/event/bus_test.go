package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{ s string }

func TestBus_DeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(p ping) { got = append(got, "ping") })
	Subscribe(b, func(p pong) { got = append(got, "pong:"+p.s) })

	Emit(b, ping{1})
	Emit(b, pong{"a"})
	Emit(b, ping{2})
	assert.Zero(t, b.DispatchAll(), "nothing before the swap")
	assert.Equal(t, 3, b.Pending())

	b.SwapBuffers()
	assert.Equal(t, 3, b.DispatchAll())
	assert.Equal(t, []string{"ping", "pong:a", "ping"}, got)

	got = nil
	b.SwapBuffers()
	assert.Zero(t, b.DispatchAll())
	assert.Empty(t, got)
}

func TestBus_EmitDuringDispatch(t *testing.T) {
	b := NewBus()
	var seen []int
	Subscribe(b, func(p ping) {
		seen = append(seen, p.n)
		if p.n < 3 {
			Emit(b, ping{p.n + 1})
		}
	})
	Emit(b, ping{1})
	for i := 0; i < 4; i++ {
		b.SwapBuffers()
		b.DispatchAll()
	}
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestBus_MultipleHandlers(t *testing.T) {
	b := NewBus()
	total := 0
	Subscribe(b, func(p ping) { total += p.n })
	Subscribe(b, func(p ping) { total += 10 * p.n })
	Emit(b, ping{2})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 22, total)
}
