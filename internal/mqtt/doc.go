// Package mqtt bridges an ecoMAX360 controller to an MQTT broker.
//
// Readings from the poller are published as JSON under
// <prefix>/<controller>/state/<PARAMETER>; preset and temperature
// commands are accepted under <prefix>/<controller>/set/. See Bridge for
// the full topic layout.
package mqtt
