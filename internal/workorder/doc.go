// Package workorder talks to the service work-order tracker: captcha login
// with the date-keyed password cipher, the completed-order CSV export, and
// parsing that export into fulfillment.WorkItem records.
package workorder
