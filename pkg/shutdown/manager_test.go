package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_ShutsDownInReverseOrder(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)

	var order []string
	m.RegisterNoErr("database", func() { order = append(order, "database") })
	m.RegisterNoErr("redis", func() { order = append(order, "redis") })
	m.Register("http", func(ctx context.Context) error {
		order = append(order, "http")
		return nil
	})

	require.NoError(t, m.Shutdown())
	assert.Equal(t, []string{"http", "redis", "database"}, order)
}

func TestManager_ContinuesAfterFailure(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)

	closed := false
	failure := errors.New("drain timed out")
	m.RegisterNoErr("database", func() { closed = true })
	m.Register("http", func(context.Context) error { return failure })

	err := m.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "http")
	assert.True(t, closed)
}

func TestManager_PassesDeadline(t *testing.T) {
	m := NewManager(zap.NewNop(), 50*time.Millisecond)

	m.Register("slow", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeServer struct{ called bool }

func (s *fakeServer) Shutdown(context.Context) error {
	s.called = true
	return nil
}

func TestManager_RegisterHTTPServer(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	srv := &fakeServer{}
	m.RegisterHTTPServer("api", srv)

	require.NoError(t, m.Shutdown())
	assert.True(t, srv.called)
}
