// Package params is the static registry of what can be read from and
// written to an ecoMAX360 controller: frame schemas, identifying markers,
// request templates, write registers and preset tables.
package params
