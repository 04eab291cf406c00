package main

import "github.com/arcstream/arcstream/cmd"

func main() {
	cmd.Execute()
}
