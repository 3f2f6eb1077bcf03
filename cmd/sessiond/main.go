package main

import "github.com/shiva-garg-77/Swaggo-sub012/cmd/sessiond/cmd"

func main() {
	cmd.Execute()
}
