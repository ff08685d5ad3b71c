package main

import "github.com/elbartohub/myWhisper/cmd"

func main() {
	cmd.Execute()
}
