package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id int
}

type dialRecorder struct {
	mu     sync.Mutex
	dials  int
	closed []int
	fail   bool
}

func (d *dialRecorder) dial(account string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, errors.New("dial failed")
	}
	d.dials++
	return &fakeConn{id: d.dials}, nil
}

func (d *dialRecorder) close(conn Connection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = append(d.closed, conn.(*fakeConn).id)
	return nil
}

func TestPool_ReusesConnectionWithinTTL(t *testing.T) {
	rec := &dialRecorder{}
	pool := newPool(rec.dial, rec.close, time.Minute)
	defer pool.Close()

	first, err := pool.GetConnection("svc")
	require.NoError(t, err)
	second, err := pool.GetConnection("svc")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, rec.dials)
}

func TestPool_RedialsAfterTTL(t *testing.T) {
	rec := &dialRecorder{}
	now := time.Now()
	pool := newPool(rec.dial, rec.close, time.Minute)
	pool.now = func() time.Time { return now }
	defer pool.Close()

	_, err := pool.GetConnection("svc")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	conn, err := pool.GetConnection("svc")
	require.NoError(t, err)

	assert.Equal(t, 2, conn.(*fakeConn).id)
	assert.Equal(t, []int{1}, rec.closed)
}

func TestPool_InvalidateAndEvict(t *testing.T) {
	rec := &dialRecorder{}
	now := time.Now()
	pool := newPool(rec.dial, rec.close, time.Minute)
	pool.now = func() time.Time { return now }

	_, err := pool.GetConnection("a")
	require.NoError(t, err)
	_, err = pool.GetConnection("b")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	pool.Invalidate("a")
	assert.Equal(t, 1, pool.Len())

	now = now.Add(5 * time.Minute)
	pool.evictIdle()
	assert.Equal(t, 0, pool.Len())
	assert.ElementsMatch(t, []int{1, 2}, rec.closed)

	pool.Close()
	pool.Close()
}

func TestPool_DialError(t *testing.T) {
	rec := &dialRecorder{fail: true}
	pool := newPool(rec.dial, rec.close, time.Minute)
	defer pool.Close()

	_, err := pool.GetConnection("svc")
	assert.Error(t, err)
	assert.Equal(t, 0, pool.Len())
}
