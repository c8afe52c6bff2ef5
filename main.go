package main

import "github.com/brensch/ificstats/cmd"

func main() {
	cmd.Execute()
}
