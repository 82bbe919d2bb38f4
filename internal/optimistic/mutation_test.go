package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values  map[string]string
	saves   []string
	failGet error
}

func newMapStore() *mapStore { return &mapStore{values: map[string]string{}} }

func (m *mapStore) Load(_ context.Context, key string) (string, bool, error) {
	if m.failGet != nil {
		return "", false, m.failGet
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Save(_ context.Context, key, value string) error {
	m.values[key] = value
	m.saves = append(m.saves, value)
	return nil
}

func (m *mapStore) Forget(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestRunReconcilesOnSuccess(t *testing.T) {
	store := newMapStore()
	store.values["order:1"] = "pending"

	got, out, err := Run(context.Background(), store, Mutation[string]{
		Key:   "order:1",
		Apply: func(prev string, had bool) (string, bool) { return "confirmed?", had },
		Commit: func(context.Context) (string, error) {
			assert.Equal(t, "confirmed?", store.values["order:1"], "speculative value visible during commit")
			return "confirmed", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got)
	assert.True(t, out.Speculated)
	assert.False(t, out.RolledBack)
	assert.Equal(t, "confirmed", store.values["order:1"])
	assert.Equal(t, []string{"confirmed?", "confirmed"}, store.saves)
}

func TestRunRestoresSnapshotOnFailure(t *testing.T) {
	store := newMapStore()
	store.values["order:1"] = "pending"
	boom := errors.New("permission denied")

	_, out, err := Run(context.Background(), store, Mutation[string]{
		Key:    "order:1",
		Apply:  func(string, bool) (string, bool) { return "confirmed", true },
		Commit: func(context.Context) (string, error) { return "", boom },
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, out.RolledBack)
	assert.Equal(t, "pending", store.values["order:1"])
}

func TestRunForgetsSpeculationWithoutSnapshot(t *testing.T) {
	store := newMapStore()

	_, out, err := Run(context.Background(), store, Mutation[string]{
		Key:    "order:2",
		Apply:  func(string, bool) (string, bool) { return "speculative", true },
		Commit: func(context.Context) (string, error) { return "", errors.New("offline") },
	})
	require.Error(t, err)
	assert.True(t, out.RolledBack)
	_, ok := store.values["order:2"]
	assert.False(t, ok)
}

func TestRunSkipsSpeculationWhenApplyDeclines(t *testing.T) {
	store := newMapStore()
	store.failGet = errors.New("cache down")
	calls := 0

	got, out, err := Run(context.Background(), store, Mutation[string]{
		Key:   "k",
		Apply: func(string, bool) (string, bool) { return "", false },
		Commit: func(context.Context) (string, error) {
			calls++
			return "final", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "final", got)
	assert.False(t, out.Speculated)
	assert.Error(t, out.StoreErr)
}
