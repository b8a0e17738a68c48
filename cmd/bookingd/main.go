package main

import "github.com/Freeeeeet/booking_api/internal/cli"

func main() {
	cli.Execute()
}
