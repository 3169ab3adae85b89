package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/matchtix/matchtix/internal/repository"
	"github.com/matchtix/matchtix/internal/service/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounterStore mirrors the conditional-UPDATE semantics of the
// postgres repo: the decrement only happens when enough seats remain,
// and release clamps at capacity.
type fakeCounterStore struct {
	mu        sync.Mutex
	total     map[int64]int
	available map[int64]int
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{
		total:     make(map[int64]int),
		available: make(map[int64]int),
	}
}

func (f *fakeCounterStore) addSection(id int64, seats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total[id] = seats
	f.available[id] = seats
}

func (f *fakeCounterStore) seats(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available[id]
}

func (f *fakeCounterStore) Reserve(_ context.Context, sectionID int64, count int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	avail, ok := f.available[sectionID]
	if !ok {
		return 0, repository.ErrNotFound
	}

	if avail <= 0 {
		return 0, repository.ErrSoldOut
	}

	if avail < count {
		return avail, repository.ErrInsufficientSeats
	}

	f.available[sectionID] = avail - count

	return f.available[sectionID], nil
}

func (f *fakeCounterStore) Release(_ context.Context, sectionID int64, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.available[sectionID]; !ok {
		return repository.ErrNotFound
	}

	f.available[sectionID] += count
	if f.available[sectionID] > f.total[sectionID] {
		f.available[sectionID] = f.total[sectionID]
	}

	return nil
}

func TestReserve(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 10)
	svc := inventory.New(store)

	res, err := svc.Reserve(context.Background(), 1, 4)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, int64(1), res.SectionID)
	assert.Equal(t, 4, res.Seats)
	assert.NotEqual(t, res.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, 6, store.seats(1))
}

func TestReserveInvalidCount(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 10)
	svc := inventory.New(store)

	for _, count := range []int{0, -3} {
		_, err := svc.Reserve(context.Background(), 1, count)
		require.ErrorIs(t, err, inventory.ErrInvalidCount)
	}

	assert.Equal(t, 10, store.seats(1))
}

func TestReserveSectionNotFound(t *testing.T) {
	svc := inventory.New(newFakeCounterStore())

	_, err := svc.Reserve(context.Background(), 42, 1)
	require.ErrorIs(t, err, inventory.ErrSectionNotFound)
}

func TestReserveSoldOut(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 2)
	svc := inventory.New(store)

	_, err := svc.Reserve(context.Background(), 1, 2)
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), 1, 1)
	require.ErrorIs(t, err, inventory.ErrSoldOut)
}

func TestReserveInsufficientSeats(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 3)
	svc := inventory.New(store)

	_, err := svc.Reserve(context.Background(), 1, 5)
	require.ErrorIs(t, err, inventory.ErrInsufficientSeats)

	var insufficient *inventory.InsufficientSeatsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1), insufficient.SectionID)
	assert.Equal(t, 3, insufficient.Remaining)

	// the failed attempt must not consume seats
	assert.Equal(t, 3, store.seats(1))
}

func TestReserveConcurrentOversubscription(t *testing.T) {
	const seats = 10
	const buyers = 50

	store := newFakeCounterStore()
	store.addSection(1, seats)
	svc := inventory.New(store)

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Reserve(context.Background(), 1, 1); err == nil {
				succeeded <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(succeeded)

	assert.Equal(t, seats, len(succeeded), "exactly one reservation per seat")
	assert.Equal(t, 0, store.seats(1))
}

func TestReleaseRoundTrip(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 10)
	svc := inventory.New(store)

	_, err := svc.Reserve(context.Background(), 1, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), 1, 7))
	assert.Equal(t, 10, store.seats(1))
}

func TestReleaseClampsAtCapacity(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 10)
	svc := inventory.New(store)

	_, err := svc.Reserve(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), 1, 2))
	require.NoError(t, svc.Release(context.Background(), 1, 2))

	assert.Equal(t, 10, store.seats(1), "double release must not exceed capacity")
}

func TestReleaseInvalidCount(t *testing.T) {
	store := newFakeCounterStore()
	store.addSection(1, 10)
	svc := inventory.New(store)

	require.ErrorIs(t, svc.Release(context.Background(), 1, 0), inventory.ErrInvalidCount)
	require.ErrorIs(t, svc.Release(context.Background(), 1, -1), inventory.ErrInvalidCount)
}

func TestReleaseSectionNotFound(t *testing.T) {
	svc := inventory.New(newFakeCounterStore())

	require.ErrorIs(t, svc.Release(context.Background(), 42, 1), inventory.ErrSectionNotFound)
}
