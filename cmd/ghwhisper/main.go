// Package main provides the ghwhisper CLI.
//
// Usage:
//
//	ghwhisper [flags] <command>
//
// Commands:
//
//	serve  - HTTP server with the SSE chat endpoint
//	chat   - interactive terminal chat
//	skills - skill registry stats and selection preview
//	tools  - list the tools discovered over MCP
//
// Configuration is read from an optional YAML file (--config) and the
// environment (OPENAI_API_KEY, GITHUB_PAT, PORT, ...).
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/ghwhisper/cmd/ghwhisper/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
