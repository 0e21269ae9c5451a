// Package pool is documented in pool.go.
//
// # Ownership
//
// Objects obtained with Get belong to the caller until Put. Kernels take
// pooled scratch once per worker range, never per element, and always
// return it with defer so that failed ranges do not leak it.
package pool
