package main

import (
	"github.com/samjhill/intro-tamer/cmd"
)

func main() {
	cmd.Execute()
}
