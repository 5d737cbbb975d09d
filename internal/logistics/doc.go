// Package logistics drives the outbound-shipment system: it logs in with the
// warehouse form login, pages through pending shipments, and dispatches each
// one either as a self-pickup or by carrier.
package logistics
