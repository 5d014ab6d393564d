package main

import "github.com/mt4110/vsplit/cmd"

func main() {
	cmd.Execute()
}
