package main

import "github.com/scienceol/caffeine/cmd"

func main() {
	cmd.Execute()
}
