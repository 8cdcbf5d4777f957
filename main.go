package main

import "pageswarm/cmd"

func main() {
	cmd.Execute()
}
