// Package derm serves the skin disease encyclopedia and the lesion class
// catalog used to explain recognition results.
package derm
