// Command agentcrew runs the data-scientist crew from the command line or
// as an HTTP service.
package main

import "github.com/hupe1980/agentcrew/internal/cli"

func main() {
	cli.Execute()
}
