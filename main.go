package main

import "github.com/framewell/fwb/cmd"

func main() {
	cmd.Execute()
}
