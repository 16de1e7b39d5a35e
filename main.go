package main

import "github.com/Patrick2402/image-version-analyzer/cmd"

func main() {
	cmd.Execute()
}
