// Package signal relays termination signals from the profiler to the
// command it wraps.
package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// ShutdownSignals 需要转发给子进程的信号
var ShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// Target is satisfied by *os.Process.
type Target interface {
	Signal(sig os.Signal) error
}

// Forward relays SIGINT/SIGTERM received by this process to target until
// the returned stop function is called. The profiler itself does not exit
// on these signals; it waits for the child and then cleans up.
func Forward(target Target, log *zap.Logger) (stop func()) {
	if log == nil {
		log = zap.NewNop()
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, ShutdownSignals...)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-sigChan:
				log.Info("forwarding signal to child", zap.String("signal", sig.String()))
				if err := target.Signal(sig); err != nil {
					log.Warn("forward signal failed", zap.String("signal", sig.String()), zap.Error(err))
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(quit)
			wg.Wait()
		})
	}
}
