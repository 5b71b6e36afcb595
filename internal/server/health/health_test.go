package health

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func deadRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func expectHealthyDB(mock sqlmock.Sqlmock) {
	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
}

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name       string
		setupDB    func(sqlmock.Sqlmock)
		redis      func(*testing.T) redis.UniversalClient
		wantStatus Status
		wantDB     Status
		wantRedis  Status
	}{
		{
			name:       "all healthy",
			setupDB:    expectHealthyDB,
			redis:      newRedis,
			wantStatus: StatusHealthy,
			wantDB:     StatusHealthy,
			wantRedis:  StatusHealthy,
		},
		{
			name: "database unreachable",
			setupDB: func(m sqlmock.Sqlmock) {
				m.ExpectPing().WillReturnError(errors.New("connection refused"))
			},
			redis:      newRedis,
			wantStatus: StatusUnhealthy,
			wantDB:     StatusUnhealthy,
			wantRedis:  StatusHealthy,
		},
		{
			name: "database query fails",
			setupDB: func(m sqlmock.Sqlmock) {
				m.ExpectPing()
				m.ExpectQuery("SELECT 1").WillReturnError(errors.New("read only"))
			},
			redis:      newRedis,
			wantStatus: StatusDegraded,
			wantDB:     StatusDegraded,
			wantRedis:  StatusHealthy,
		},
		{
			name:       "redis unreachable",
			setupDB:    expectHealthyDB,
			redis:      deadRedis,
			wantStatus: StatusUnhealthy,
			wantDB:     StatusHealthy,
			wantRedis:  StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newDB(t)
			tt.setupDB(mock)

			report := NewChecker(db, tt.redis(t), time.Second, logging.Nop()).Check(context.Background())

			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantDB, report.Components["database"].Status)
			assert.Equal(t, tt.wantRedis, report.Components["redis"].Status)
			assert.Equal(t, tt.wantStatus != StatusUnhealthy, report.Serving())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestChecker_NotConfigured(t *testing.T) {
	c := NewChecker(nil, nil, 0, logging.Nop())
	assert.Equal(t, defaultTimeout, c.timeout)

	report := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "database not configured", report.Components["database"].Message)
	assert.Equal(t, "redis not configured", report.Components["redis"].Message)
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []bool
}

func (p *recordingPublisher) SetServing(serving bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, serving)
}

func (p *recordingPublisher) snapshot() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.states...)
}

func TestChecker_WatchPublishesUntilCancelled(t *testing.T) {
	db, mock := newDB(t)
	expectHealthyDB(mock)
	mock.ExpectPing().WillReturnError(errors.New("connection reset"))

	c := NewChecker(db, newRedis(t), time.Second, logging.Nop())
	p := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, 10*time.Millisecond, p)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(p.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health checker did not stop")
	}

	states := p.snapshot()
	assert.True(t, states[0], "first round sees healthy stores")
	assert.False(t, states[1], "second round sees the failed ping")
}
