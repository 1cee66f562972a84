package main

import "github.com/nijaru/mediatext/cmd"

func main() {
	cmd.Execute()
}
