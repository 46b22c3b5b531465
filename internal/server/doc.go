// Package server hosts the motorsport API behind a single HTTP server.
//
// Every request passes through the same chain: correlation id, request
// logging, metrics, panic recovery, security headers, CORS, authentication and
// throttling, before the multiplexer dispatches it to an api.Handler method.
package server
