package main

import "github.com/andrealenzi11/poppleract/cmd"

func main() {
	cmd.Execute()
}
