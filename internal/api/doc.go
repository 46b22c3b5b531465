// Package api hosts the HTTP handlers behind the motorsport REST API.
//
// Handler coordinates request decoding, field validation and response shaping
// while delegating persistence to a storage.Repository and token lifecycle to
// an auth.TokenManager injected at construction time. Every error leaves the
// package through WriteError or WriteDetail so clients always receive the same
// {error, detail, status_code, errors} envelope.
//
// Handlers assume upstream middleware from internal/server has already run
// authentication, rate limiting, metrics and request logging. The
// authenticated user, when present, is available through UserFromContext.
package api
