package main

import "github.com/NERVsystems/ecoroute/cmd/ecotrip/cmd"

func main() {
	cmd.Execute()
}
