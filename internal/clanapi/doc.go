// Package clanapi maps clan host operations to domain types.
//
// Each method builds the request body the host expects, calls it through an
// rpc.Caller with the clan (and machine) as log group, and converts the
// response into internal/model values. Errors from the rpc layer are
// returned unchanged so callers can match *rpc.APIError.
//
// The wire structs in wire.go are exported because the in-process demo
// host decodes the same bodies.
package clanapi
