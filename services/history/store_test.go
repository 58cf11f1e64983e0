package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"excelsior/core/events"
	"excelsior/crypto"
	"excelsior/observability/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return store
}

func owner(last byte) crypto.Address {
	var a crypto.Address
	a[crypto.AddressLength-1] = last
	return a
}

func TestPublishGroupsEventsByRequest(t *testing.T) {
	store := openTestStore(t)
	ctx := logging.WithRequestID(context.Background(), "req-42")

	require.NoError(t, store.Publish(ctx, []events.Event{
		events.StakeOpened{Owner: owner(1)},
		events.StakeDeposited{Owner: owner(1), Amount: 10, Staked: 10, TotalStaked: 10},
	}))
	require.NoError(t, store.Publish(context.Background(), []events.Event{
		events.StakeOpened{Owner: owner(2)},
	}))

	batch, err := store.Query(context.Background(), Filter{Batch: "req-42"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, events.TypeStakeOpened, batch[0].Type)
	require.Equal(t, events.TypeStakeDeposited, batch[1].Type)
	require.Equal(t, "10", batch[1].Fields()["amount"])
	require.Equal(t, owner(1).String(), batch[1].Fields()["owner"])
	require.Equal(t, int64(1_700_000_000), batch[0].CreatedAt.Unix())

	all, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NotEqual(t, "req-42", all[2].Batch)
	_, err = uuid.Parse(all[2].Batch)
	require.NoError(t, err)
}

func TestQueryFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := byte(1); i <= 5; i++ {
		require.NoError(t, store.Publish(ctx, []events.Event{events.StakeOpened{Owner: owner(i)}}))
	}
	require.NoError(t, store.Publish(ctx, []events.Event{events.FeeUpdated{Previous: 1, Current: 2}}))

	opened, err := store.Query(ctx, Filter{Type: events.TypeStakeOpened, Limit: 2})
	require.NoError(t, err)
	require.Len(t, opened, 2)

	next, err := store.Query(ctx, Filter{Type: events.TypeStakeOpened, AfterID: opened[1].ID})
	require.NoError(t, err)
	require.Len(t, next, 3)

	byAccount, err := store.Query(ctx, Filter{Account: owner(4).String()})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	require.Equal(t, owner(4).String(), byAccount[0].Fields()["owner"])
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.ErrorIs(t, err, ErrPathRequired)
	require.NoError(t, (*Store)(nil).Close())
}
