//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// mockgen is run through `go generate ./contract/...` and must stay pinned
// in go.mod even though no package imports it.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
