// Package connector implements the network endpoints a hostkit server
// exposes: HTTP listeners serving one deployment each, the statistics
// decorator wrapped around their handlers, and the UDP packet listener.
//
// Every type here is started once and stopped once. A server that starts
// again creates new connectors.
package connector
