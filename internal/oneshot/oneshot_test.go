package oneshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendThenReceive(t *testing.T) {
	tx, rx := New[int]()
	require.NoError(t, tx.Send(7))

	v, err := rx.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestReceiveWaitsForSend(t *testing.T) {
	tx, rx := New[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = tx.Send("done")
	}()

	v, err := rx.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestDropResolvesReceiver(t *testing.T) {
	tx, rx := New[error]()
	go tx.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := rx.Receive(ctx)
	assert.ErrorIs(t, err, ErrDropped)
}

func TestDropAfterSendKeepsValue(t *testing.T) {
	tx, rx := New[int]()
	require.NoError(t, tx.Send(1))
	tx.Drop()

	v, err := rx.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSecondSendRejected(t *testing.T) {
	tx, _ := New[int]()
	require.NoError(t, tx.Send(1))
	assert.ErrorIs(t, tx.Send(2), ErrAlreadySent)

	tx2, _ := New[int]()
	tx2.Drop()
	assert.ErrorIs(t, tx2.Send(3), ErrAlreadySent)
}

func TestSecondReceiveRejected(t *testing.T) {
	tx, rx := New[int]()
	require.NoError(t, tx.Send(1))

	_, err := rx.Receive(context.Background())
	require.NoError(t, err)
	_, err = rx.Receive(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyReceived)
}

func TestReceiveHonoursContext(t *testing.T) {
	_, rx := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rx.Receive(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestResolvedSlotWinsOverDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		tx, rx := New[int]()
		require.NoError(t, tx.Send(i))
		v, err := rx.Receive(ctx)
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, i, v)

		tx, rx = New[int]()
		tx.Drop()
		_, err = rx.Receive(ctx)
		assert.ErrorIs(t, err, ErrDropped, "iteration %d", i)
	}
}
