// Package ratelimit provides per-client token-bucket rate limiting middleware
// for the admin server, with automatic cleanup of idle clients.
package ratelimit
