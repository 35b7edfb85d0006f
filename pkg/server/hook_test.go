//go:build unix

package server

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/hostkit/pkg/config"
	"github.com/marmos91/hostkit/pkg/workers"
)

func TestShutdownHook_StopsOnSIGTERM(t *testing.T) {
	stopped := make(chan struct{}, 1)
	s := newServer(t, testConfig(t), func(_ *workers.Pool, b *Builder, _ *config.Config, _ []string) error {
		b.WebService(statusService())
		b.ShutdownListener(ListenerFunc(func(*Server) error {
			stopped <- struct{}{}
			return nil
		}))
		return nil
	})
	require.NoError(t, s.Start(true))

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("server not stopped by SIGTERM")
	}
	assert.Equal(t, StateStopped, s.State())
	assert.Len(t, stopped, 1)
	assert.Empty(t, s.ConnectorsStatistics())
}

