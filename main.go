package main

import "github.com/axonlabs/axon/cmd"

func main() {
	cmd.Execute()
}
