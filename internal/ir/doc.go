// Package ir provides the canonical intermediate representation shared by
// the compiler, the engine, and the reference remote service.
//
// This package contains plain data types and their canonical encoding only.
// All other internal packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Field values are strings; the empty string means unset
//   - No floats in canonical form; hashed payloads are strings and integers
//   - All JSON tags use snake_case
package ir
