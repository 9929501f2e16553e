package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	tctest "github.com/arloliu/taskchain/testing"
	"github.com/arloliu/taskchain/types"
)

func TestNATSQuerier_RoundTrip(t *testing.T) {
	_, nc := tctest.StartEmbeddedNATS(t)

	users := NewStaticUsers([]types.UserData{{ID: "mary", Enabled: true, Groups: []string{"HR"}}})
	responder := NewResponder(nc, "test.tasks", newSample(), WithUsers(users), WithResponderLogger(tctest.NewTestLogger(t)))
	require.NoError(t, responder.Start())
	t.Cleanup(func() { _ = responder.Stop() })

	q := NewNATSQuerier(nc, "test.tasks", time.Second)
	res, err := q.QueryTasks(context.Background(), types.TaskQuery{PageSize: 2, Page: 1})

	require.NoError(t, err)
	require.True(t, fixedNow.Equal(res.QueryTime))
	require.Equal(t, []types.TaskID{1, 2}, ids(res.Tasks))
	require.Equal(t, owners("c"), res.Tasks[0].PotentialOwners)

	got, err := NewNATSUsers(nc, "test.tasks", time.Second).ListUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, []types.UserData{{ID: "mary", Enabled: true, Groups: []string{"HR"}}}, got)
}

func TestNATSQuerier_ServiceError(t *testing.T) {
	_, nc := tctest.StartEmbeddedNATS(t)

	failing := QuerierFunc(func(context.Context, types.TaskQuery) (types.TaskQueryResult, error) {
		return types.TaskQueryResult{}, errors.New("database unavailable")
	})
	responder := NewResponder(nc, "test.failing", failing)
	require.NoError(t, responder.Start())
	t.Cleanup(func() { _ = responder.Stop() })

	_, err := NewNATSQuerier(nc, "test.failing", time.Second).QueryTasks(context.Background(), types.TaskQuery{PageSize: 1})

	require.ErrorIs(t, err, ErrServiceFailure)
	require.Contains(t, err.Error(), "database unavailable")
}

func TestNATSQuerier_NoResponders(t *testing.T) {
	_, nc := tctest.StartEmbeddedNATS(t)

	_, err := NewNATSQuerier(nc, "test.nobody", 200*time.Millisecond).QueryTasks(context.Background(), types.TaskQuery{PageSize: 1})

	require.ErrorIs(t, err, types.ErrConnectivity)
	require.ErrorIs(t, err, nats.ErrNoResponders)
}

func TestResponder_StartTwice(t *testing.T) {
	_, nc := tctest.StartEmbeddedNATS(t)

	responder := NewResponder(nc, "test.twice", newSample(), WithQueue("workers"))
	require.NoError(t, responder.Start())
	require.ErrorIs(t, responder.Start(), types.ErrAlreadyStarted)
	require.NoError(t, responder.Stop())
	require.NoError(t, responder.Stop())
}

func TestNewNATSQuerier_DefaultTimeout(t *testing.T) {
	q := NewNATSQuerier(nil, "x", 0)
	require.Equal(t, DefaultRequestTimeout, q.timeout)
	require.Equal(t, "x.users", NewNATSUsers(nil, "x", 0).subject)
}
