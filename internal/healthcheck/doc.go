// Package healthcheck runs periodic probes against the service's
// dependencies and reports their combined status.
//
// A failing critical probe (the database) makes the service DOWN. A failing
// non-critical probe (the cache backend) only makes it DEGRADED, since the
// service keeps answering from the database while the cache is away.
package healthcheck
