// Package server is the process-wide lifecycle orchestrator.
//
// A Server is constructed once per process from a configuration and a
// populate function that registers web services, servlets, filters,
// packet listeners and lifecycle callbacks on a Builder. Start brings the
// configured connectors up in a fixed order:
//
//  1. the UDP packet listener, when packet listeners are registered
//  2. the WEBAPP connector, when servlets are registered
//  3. the WEBSERVICE connector, when web services are registered
//
// StopAll tears them down in reverse order. It is idempotent and safe on a
// server that never started or failed half way through Start.
package server
