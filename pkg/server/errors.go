package server

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateInstance is returned by New while another server holds
	// the process slot.
	ErrDuplicateInstance = errors.New("a server instance is already running")

	// ErrInvalidState is returned by Start when the server is not freshly
	// constructed.
	ErrInvalidState = errors.New("invalid server state")
)

// ConfigurationError reports a configuration problem detected at Start,
// before any socket is opened.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// BindError reports a socket that could not be bound.
type BindError struct {
	Connector string
	Address   string
	Err       error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s: cannot bind %s: %v", e.Connector, e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// DeploymentError reports an application that failed to deploy or start on
// its connector.
type DeploymentError struct {
	Connector string
	Err       error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("%s: deployment failed: %v", e.Connector, e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }
