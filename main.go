package main

import "github.com/furisto/seyal/frontend/cli/cmd"

func main() {
	cmd.Execute()
}
