package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/storage"
	"github.com/BuzzLyutic/taskdesk/internal/storage/memory"
)

// MockDatabase - мок хранилища
type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) Insert(ctx context.Context, table string, data storage.Record) error {
	args := m.Called(ctx, table, data)
	return args.Error(0)
}

func (m *MockDatabase) Find(ctx context.Context, table string, cond storage.Conditions) (storage.Record, error) {
	args := m.Called(ctx, table, cond)
	if r := args.Get(0); r != nil {
		return r.(storage.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) FindAll(ctx context.Context, table string) ([]storage.Record, error) {
	args := m.Called(ctx, table)
	return args.Get(0).([]storage.Record), args.Error(1)
}

func (m *MockDatabase) FindWhere(ctx context.Context, table string, cond storage.Conditions) ([]storage.Record, error) {
	args := m.Called(ctx, table, cond)
	if r := args.Get(0); r != nil {
		return r.([]storage.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Update(ctx context.Context, table string, cond storage.Conditions, data storage.Record) error {
	args := m.Called(ctx, table, cond, data)
	return args.Error(0)
}

func (m *MockDatabase) Delete(ctx context.Context, table string, cond storage.Conditions) error {
	args := m.Called(ctx, table, cond)
	return args.Error(0)
}

func (m *MockDatabase) Count(ctx context.Context, table string, cond storage.Conditions) (int, error) {
	args := m.Called(ctx, table, cond)
	return args.Int(0), args.Error(1)
}

func sampleUser(t *testing.T, email string) model.User {
	t.Helper()
	now := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	u, err := model.NewUser("Ann", email, model.NewDate(1990, time.May, 4), now)
	require.NoError(t, err)
	return u
}

func TestRepository_SaveThenFindSkipsStorage(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})
	u := sampleUser(t, "ann@example.com")

	db.On("Insert", ctx, UsersTable, mock.Anything).Return(nil).Once()

	require.NoError(t, r.Save(ctx, u))
	got, err := r.FindByKey(ctx, "ann@example.com")
	require.NoError(t, err)

	assert.Equal(t, u, got)
	db.AssertExpectations(t)
	db.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(1), r.Stats().Hits)
}

func TestRepository_FindByKeyLoadsOnce(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})
	u := sampleUser(t, "bob@example.com")
	u.Roles = []string{"admin", "editor"}

	db.On("Find", mock.Anything, UsersTable, storage.Conditions{"email": "bob@example.com"}).
		Return(userMapper{}.ToRecord(u), nil).Once()

	first, err := r.FindByKey(ctx, "bob@example.com")
	require.NoError(t, err)
	second, err := r.FindByKey(ctx, "bob@example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"admin", "editor"}, first.Roles)
	db.AssertNumberOfCalls(t, "Find", 1)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestRepository_FindByKeyNotFound(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})

	db.On("Find", mock.Anything, UsersTable, storage.Conditions{"email": "ghost@example.com"}).
		Return(nil, storage.ErrNotFound)

	_, err := r.FindByKey(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrorNotFound)

	ok, err := r.Exists(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Stats().Entries)
}

func TestRepository_SaveFailurePropagates(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})
	boom := assert.AnError

	db.On("Insert", ctx, UsersTable, mock.Anything).Return(boom).Once()

	err := r.Save(ctx, sampleUser(t, "ann@example.com"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Stats().Entries)
	db.AssertNumberOfCalls(t, "Insert", 1)
}

func TestRepository_FindAllCachesEverything(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})
	a, b := sampleUser(t, "a@example.com"), sampleUser(t, "b@example.com")

	db.On("FindWhere", ctx, UsersTable, storage.Conditions(nil)).
		Return([]storage.Record{userMapper{}.ToRecord(a), userMapper{}.ToRecord(b)}, nil).Twice()

	all, err := r.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = r.FindByKey(ctx, "b@example.com")
	require.NoError(t, err)
	db.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)

	// FindAll never serves from the cache.
	_, err = r.FindAll(ctx)
	require.NoError(t, err)
	db.AssertNumberOfCalls(t, "FindWhere", 2)
}

func TestRepository_DeleteAndClearCache(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})
	u := sampleUser(t, "ann@example.com")
	cond := storage.Conditions{"email": "ann@example.com"}

	db.On("Insert", ctx, UsersTable, mock.Anything).Return(nil)
	db.On("Delete", ctx, UsersTable, cond).Return(nil).Once()
	db.On("Find", mock.Anything, UsersTable, cond).Return(nil, storage.ErrNotFound).Once()
	db.On("Find", mock.Anything, UsersTable, cond).Return(userMapper{}.ToRecord(u), nil).Once()

	require.NoError(t, r.Save(ctx, u))
	require.NoError(t, r.Delete(ctx, "ann@example.com"))

	_, err := r.FindByKey(ctx, "ann@example.com")
	assert.ErrorIs(t, err, ErrorNotFound)

	require.NoError(t, r.Save(ctx, u))
	r.ClearCache()
	assert.Equal(t, 0, r.Stats().Entries)

	got, err := r.FindByKey(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	db.AssertNumberOfCalls(t, "Find", 2)
}

func TestRepository_UpdateRefreshesCache(t *testing.T) {
	ctx := context.Background()
	db := new(MockDatabase)
	r := NewRepository[string, model.User](db, userMapper{})
	u := sampleUser(t, "ann@example.com")

	db.On("Insert", ctx, UsersTable, mock.Anything).Return(nil)
	db.On("Update", ctx, UsersTable, storage.Conditions{"email": "ann@example.com"}, mock.Anything).Return(nil)

	require.NoError(t, r.Save(ctx, u))
	u.Deactivate()
	require.NoError(t, r.Update(ctx, u))

	got, err := r.FindByKey(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

// cancelAwareDB fails reads whose context is already done, like a real driver would.
type cancelAwareDB struct {
	storage.Database
}

func (d cancelAwareDB) Find(ctx context.Context, table string, cond storage.Conditions) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Database.Find(ctx, table, cond)
}

func TestRepository_FindByKeySharedLoadOutlivesCaller(t *testing.T) {
	db := memory.New()
	u := sampleUser(t, "carol@example.com")
	require.NoError(t, db.Insert(context.Background(), UsersTable, userMapper{}.ToRecord(u)))
	r := NewRepository[string, model.User](cancelAwareDB{db}, userMapper{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := r.FindByKey(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, 1, r.Stats().Entries)
}

func TestRepository_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	r := NewRepository[string, model.User](memory.New(), userMapper{})
	u := sampleUser(t, "ann@example.com")
	require.NoError(t, r.Save(ctx, u))
	r.ClearCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.FindByKey(ctx, "ann@example.com")
			assert.NoError(t, err)
			assert.Equal(t, "Ann", got.Name)
		}()
	}
	wg.Wait()

	stats := r.Stats()
	assert.Equal(t, int64(50), stats.Hits+stats.Misses)
	assert.LessOrEqual(t, stats.Loads, stats.Misses)
}
