package main

import (
	"log"

	"seat-waitroom/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
