package main

import "github.com/bryanchriswhite/dimsway/cmd/dimsway/commands"

func main() {
	commands.Execute()
}
