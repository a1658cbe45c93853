// Package main provides the entry point for the bhsql client.
package main

import "github.com/nnnkkk7/bytehouse-bridge/internal/cli"

func main() {
	cli.Execute()
}
