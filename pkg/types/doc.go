// Package types defines the backend families, project configuration,
// resolution signals, and standard errors shared by the pyve CLI and its
// internal packages.
package types
