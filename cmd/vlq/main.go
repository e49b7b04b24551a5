package main

import "github.com/oy3o/vcodec/cmd/vlq/cmd"

func main() {
	cmd.Execute()
}
