package main

import "github.com/KaramelBytes/adpulse-cli/cmd"

func main() {
	cmd.Execute()
}
