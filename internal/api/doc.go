// Package api is the boundary of the sync engine: it accepts date lookups
// over both transports (one-shot HTTP and persistent WebSocket), reduces
// them to the same internal representation, and delivers results back to
// the caller that issued the matching request. No error is ever allowed to
// cross a transport boundary unconverted.
package api
