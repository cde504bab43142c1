package main

import "github.com/KaramelBytes/sunlens-cli/cmd"

func main() {
	cmd.Execute()
}
