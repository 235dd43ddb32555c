package util

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// SetupInterruptHandler runs shutdown on the first SIGINT/SIGTERM. A second
// signal exits immediately without waiting for in-flight tasks.
func SetupInterruptHandler(log *zap.Logger, shutdown func()) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info("interrupt received, shutting down")
		go func() {
			<-sig
			log.Warn("second interrupt, exiting now")
			os.Exit(1)
		}()

		shutdown()
		os.Exit(1)
	}()
}
