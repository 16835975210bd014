package workers

import (
	"chat-relay/runtime"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type StatsSource interface {
	Stats() runtime.RelayStats
}

// StatsWorker periodically logs the relay load together with the process
// footprint. Sampling is read-only and never slows down sessions.
type StatsWorker struct {
	log         *slog.Logger
	source      StatsSource
	interval    time.Duration
	lastDropped uint64
}

func NewStatsWorker(log *slog.Logger, source StatsSource, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, source: source, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *StatsWorker) report(p *process.Process) {
	stats := w.source.Stats()
	attrs := []any{
		"sessions", stats.Sessions,
		"registered", stats.Registered,
		"subscribers", stats.Hub.Subscribers,
		"published", stats.Hub.Published,
		"dropped", stats.Hub.Dropped,
	}
	if p != nil {
		rss, cpu, err := selfStats(p)
		if err != nil {
			w.log.Debug("Failed to collect self stats", "error", err)
		} else {
			attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
		}
	}
	w.log.Info("Relay stats", attrs...)

	if stats.Hub.Dropped > w.lastDropped {
		w.log.Warn("Slow subscribers lost events", "dropped", stats.Hub.Dropped-w.lastDropped)
	}
	w.lastDropped = stats.Hub.Dropped
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
