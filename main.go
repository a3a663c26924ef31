package main

import (
	"PulseFM/cmd"
)

func main() {
	cmd.Execute()
}
