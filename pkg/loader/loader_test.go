package loader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siliconforge/dutlink/pkg/transport"
)

func newSimSession(t *testing.T, sim *transport.SimBackend) *transport.Session {
	t.Helper()
	sess, err := transport.Open(transport.Config{
		Kind: transport.KindSim,
		Sim:  &transport.SimOptions{Backend: sim},
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}
