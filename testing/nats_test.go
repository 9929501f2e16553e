package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(time.Second))
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateJetStreamKV(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	kv := CreateJetStreamKV(t, nc, "fixture-bucket")

	_, err := kv.Put(t.Context(), "snapshot.current", []byte("{}"))
	require.NoError(t, err)

	entry, err := kv.Get(t.Context(), "snapshot.current")
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), entry.Value())
}

func TestGenerateTasks(t *testing.T) {
	a := GenerateTasks(7, 40, 6)
	b := GenerateTasks(7, 40, 6)

	require.Len(t, a, 40)
	require.Equal(t, a, b, "same seed, same population")

	for i, task := range a {
		require.NotEmpty(t, task.PotentialOwners)
		require.LessOrEqual(t, len(task.PotentialOwners), 6)
		if i > 0 {
			require.Greater(t, task.TaskID, a[i-1].TaskID)
		}
	}
}
