package main

import (
	"log"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	server := NewAuctioneerServer(cfg)
	log.Fatal(server.Start())
}
