// Package types defines shared types used across the syncforge engine,
// primarily the structured error model with unified error codes.
package types
