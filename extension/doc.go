// Package extension provides run-time registries that bind business subject
// kinds (for example purchase requests or overtime requests) to the approval
// engine, together with the Go types behind their payloads.
//
// The registries are normally modified through the public APIs under the
// root stagegate package, therefore most applications do not need to import
// this package directly.
package extension
