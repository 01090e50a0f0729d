package main

import "github.com/reelhaven/reelhaven/cmd"

func main() {
	cmd.Execute()
}
