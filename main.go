package main

import "github.com/nextlevelbuilder/carelink/cmd"

func main() {
	cmd.Execute()
}
