package main

import "github.com/0xcc/jvm-tools/cmd"

func main() {
	cmd.Execute()
}
