package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.WithError(err).Error("boardsync")
		os.Exit(1)
	}
}
