package server

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/hostkit/internal/logger"
)

// installShutdownHook stops the server on SIGINT or SIGTERM. StopAll
// removes the hook, so a server stopped by other means leaves no signal
// handler behind.
func (s *Server) installShutdownHook() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cancel := make(chan struct{})
	s.hookCancel = func() {
		signal.Stop(sigChan)
		close(cancel)
	}

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			s.StopAll()
		case <-cancel:
		}
	}()
}
