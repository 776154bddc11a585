// Package rpc manages the connection to the editor backend process.
//
// The backend owns all buffer state. This package spawns it, speaks its
// newline-delimited JSON-RPC protocol over stdin/stdout, and delivers every
// decoded message through an ordered, unbounded queue to the single consumer
// goroutine that owns all view state. Requests carry an integer id and the
// matching response is routed back through the same queue, so callbacks always
// run on the consumer goroutine.
package rpc
