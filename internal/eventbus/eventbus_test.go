package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ n int }
type pong struct{}

func TestPublishDispatchesByType(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []int
	off := Subscribe(func(_ context.Context, p ping) { got = append(got, p.n) })
	Subscribe(func(_ context.Context, _ pong) { got = append(got, -1) })

	Publish(context.Background(), ping{n: 1})
	Publish(context.Background(), pong{})
	off()
	off()
	Publish(context.Background(), ping{n: 2})

	require.Equal(t, []int{1, -1}, got)
}

func TestUnsubscribeKeepsSiblings(t *testing.T) {
	Use(New())
	defer Use(nil)

	var a, b int
	offA := Subscribe(func(context.Context, ping) { a++ })
	Subscribe(func(context.Context, ping) { b++ })
	offA()
	Publish(context.Background(), ping{})

	require.Equal(t, 0, a)
	require.Equal(t, 1, b)
}

func TestWithoutBus(t *testing.T) {
	Use(nil)
	called := false
	off := Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	off()
	require.False(t, called)
}
