package main

import "github.com/studyhub/studyfeed/internal/cmd"

func main() {
	cmd.Execute()
}
