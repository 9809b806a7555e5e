package main

import "jobfeed/cmd"

func main() {
	cmd.Execute()
}
