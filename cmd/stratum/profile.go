package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// profiler writes pprof profiles covering one command
type profiler struct {
	cpuFile string
	memFile string
	cpu     *os.File
}

func (p *profiler) start() error {
	if p.cpuFile == "" {
		return nil
	}
	f, err := os.Create(p.cpuFile)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create CPU profile").WithDetail("path", p.cpuFile)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to start CPU profile")
	}
	p.cpu = f
	return nil
}

func (p *profiler) stop(log *zap.Logger) {
	if p.cpu != nil {
		pprof.StopCPUProfile()
		p.cpu.Close()
		p.cpu = nil
		log.Info("CPU profile written", zap.String("path", p.cpuFile))
	}
	if p.memFile == "" {
		return
	}
	f, err := os.Create(p.memFile)
	if err != nil {
		log.Warn("failed to create memory profile", zap.String("path", p.memFile), zap.Error(err))
		return
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Warn("failed to write memory profile", zap.Error(err))
		return
	}
	log.Info("memory profile written", zap.String("path", p.memFile))
}
