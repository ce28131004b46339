// Package metadata is a client for the GCE metadata server - environment
// detection, instance/project metadata fetches, and the dual-path
// availability race that decides quickly and reliably whether a metadata
// server exists at all. The exported surface is Client plus package-level
// wrappers around a process-wide default client.
package metadata
