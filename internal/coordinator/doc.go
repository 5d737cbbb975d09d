// Package coordinator runs the fulfillment pass: log into the three backend
// systems, then for each product category export completed work orders, pick
// every SN on the warehouse system, and dispatch pending shipments.
//
// RunOnce performs one pass and returns a Report; Loop repeats it on the
// configured interval until the context is cancelled. All backend calls run
// sequentially on the caller's goroutine.
package coordinator
