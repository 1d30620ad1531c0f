//go:build !debug

// Package check holds invariant assertions that only fire in debug builds.
package check

func Assert(_ bool, _ string) {}

func Assertf(_ bool, _ string, _ ...any) {}
