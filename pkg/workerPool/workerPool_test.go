package workerpool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomCollectsAllResults(t *testing.T) {
	pool := New(Config{WorkerCount: 4, GlobalBuffer: 100})
	room := pool.NewRoom(10)

	for i := 0; i < 10; i++ {
		idx := i
		room.Submit(func() Result {
			return Result{Index: idx, Data: []byte{byte(idx)}}
		})
	}

	results, err := room.Collect()
	require.NoError(t, err)
	require.Len(t, results, 10)
}

func TestRoomLastWriterWinsError(t *testing.T) {
	pool := New(Config{WorkerCount: 2, GlobalBuffer: 10})
	room := pool.NewRoom(3)

	errA := errors.New("a")
	errB := errors.New("b")

	room.Submit(func() Result { return Result{Index: 0, Err: errA} })
	room.Submit(func() Result { return Result{Index: 1} })

	results, err := room.Collect()
	require.Len(t, results, 2)
	require.Error(t, err)

	room2 := pool.NewRoom(1)
	room2.Submit(func() Result { return Result{Index: 0, Err: errB} })
	_, err2 := room2.Collect()
	require.Equal(t, errB, err2)
}
