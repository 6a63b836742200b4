package main

import (
	"os"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

func main() {
	if err := newCmdRoot().Execute(); err != nil {
		log.Error("uniactor exited with error", zap.Error(err))
		os.Exit(1)
	}
}
