package main

import "github.com/CosmoTheDev/forgemirror/cmd"

func main() {
	cmd.Execute()
}
