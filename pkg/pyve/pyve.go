// Package pyve carries the module version.
package pyve

// Version is the pyve release version. It is recorded in each project's
// .pyve/config at init time so doctor can flag version drift.
const Version = "0.9.0"
