package main

import "github.com/renvik/mangarr/cmd"

func main() {
	cmd.Execute()
}
