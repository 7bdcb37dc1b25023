// Package main provides the follow-weaver command line.
//
// Usage:
//
//	crawler crawl @alice @bob --depth 2
//	crawler crawl --id 12345
//	crawler status
//
// See --help for all available options.
package main

func main() {
	Execute()
}
