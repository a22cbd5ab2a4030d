package main

import "github.com/Norgate-AV/docrender/cmd"

func main() {
	cmd.Execute()
}
