// Package rediscache implements cache.Manager on top of Redis.
//
// Entries are stored as plain string keys laid out as
//
//	{prefix}{cache name}::{key}
//
// with the configured TTL. When time-to-idle is enabled every read also
// re-arms the TTL, so entries that keep being read never expire.
//
// The store reports every Redis error to its caller. Wrap the manager with
// cache.NewResilientManager to fail open when Redis is unreachable.
package rediscache
