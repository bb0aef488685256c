package main

import "github.com/they4kman/sweeprelay/cmd"

func main() {
	cmd.Execute()
}
