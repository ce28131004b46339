package main

import "go.gcemeta.io/gcemeta/cmd"

func main() {
	cmd.Execute()
}
