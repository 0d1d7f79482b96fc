package main

import "hudebug/cmd"

func main() {
	cmd.Execute()
}
