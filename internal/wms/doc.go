// Package wms drives the warehouse execution system (system name "asd"):
// form login against the wms-web security endpoint and the four-step picking
// saga that turns a serial number into a picked outbound order.
package wms
