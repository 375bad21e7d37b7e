// Command openeyes runs the handheld perception-decision-guidance loop:
// it streams sensor packets from a BLETransport (the synthetic Simulator is
// the only one wired; -simulate=false exits with an error), fuses and classifies
// them, evaluates the expert guidance rules, and drives speech output
// through the displacement-aware executor.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asgard/openeyes/internal/config"
	"github.com/asgard/openeyes/internal/debugserver"
	"github.com/asgard/openeyes/internal/executor"
	"github.com/asgard/openeyes/internal/filter"
	"github.com/asgard/openeyes/internal/navigation"
	"github.com/asgard/openeyes/internal/pipeline"
	"github.com/asgard/openeyes/internal/platform/observability"
	"github.com/asgard/openeyes/internal/snapshot"
	"github.com/asgard/openeyes/internal/telemetry"
	"github.com/asgard/openeyes/internal/transport"
)

// displacementTickInterval is the cadence at which the main loop folds
// elapsed time into the executor's displacement tracker (spec §5).
const displacementTickInterval = 100 * time.Millisecond

func main() {
	simulate := flag.Bool("simulate", true, "stream synthetic packets instead of a real BLE cane")
	tickMs := flag.Int("simulate-tick-ms", 100, "packet interval when -simulate is set")
	flag.Parse()

	log.Println("=== OPEN-EYES handheld ===")
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), "openeyes")
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Printf("tracing shutdown error: %v", err)
			}
		}()
	}

	var relay *telemetry.Relay
	if cfg.TelemetryEnabled {
		relay, err = telemetry.NewRelay(telemetry.Config{
			URL:           cfg.NATSURL,
			ReconnectWait: cfg.NATSReconnectWait,
			MaxReconnects: cfg.NATSMaxReconnects,
		})
		if err != nil {
			log.Printf("telemetry relay disabled: %v", err)
			relay = nil
		} else {
			defer relay.Close()
			log.Printf("telemetry relay connected to %s", cfg.NATSURL)
		}
	}

	dbg := debugserver.NewServer()
	defer dbg.Close()
	go func() {
		log.Printf("debug server listening on %s", cfg.DebugServerAddr)
		if err := dbg.ListenAndServe(cfg.DebugServerAddr); err != nil {
			log.Printf("debug server stopped: %v", err)
		}
	}()

	speech := transport.NewConsoleSpeech()
	exec := executor.New(speech)

	nav := navigation.New()
	f := filter.New(5)

	var (
		snapMu        sync.Mutex
		latestSnap    snapshot.Snapshot
		hasLatestSnap bool
	)

	decisionObserver := func(d pipeline.Decision) {
		dbg.ObserveDecision(d)
		if relay != nil {
			relay.Publish(telemetry.EventInstruction, map[string]interface{}{
				"instruction": d.Instruction,
				"emitted":     d.Emit,
			})
		}

		snapMu.Lock()
		latestSnap = d.Snapshot
		hasLatestSnap = true
		snapMu.Unlock()

		if !d.Emit {
			return
		}
		if err := exec.Process(context.Background(), d.Instruction, d.Snapshot); err != nil {
			log.Printf("executor process error: %v", err)
		}
	}

	p := pipeline.New(f,
		pipeline.WithNavigator(nav),
		pipeline.WithDecisionObserver(decisionObserver),
		pipeline.WithMaxPacketAge(cfg.MaxPacketAgeMs),
	)
	p.Start()
	defer p.Dispose()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bleTransport transport.BLETransport
	if *simulate {
		bleTransport = transport.NewSimulator(time.Duration(*tickMs) * time.Millisecond)
	} else {
		log.Fatal("no real BLE transport wired yet; run with -simulate")
	}

	if err := bleTransport.Connect(ctx); err != nil {
		log.Fatalf("connect to %s failed: %v", cfg.DeviceName, err)
	}
	defer bleTransport.Disconnect(context.Background())

	packets, err := bleTransport.Stream(ctx)
	if err != nil {
		log.Fatalf("stream failed: %v", err)
	}

	stuckTicker := time.NewTicker(1 * time.Second)
	defer stuckTicker.Stop()

	displacementTicker := time.NewTicker(displacementTickInterval)
	defer displacementTicker.Stop()
	lastDisplacementTick := time.Now()

	log.Println("ingest loop started")
	for {
		select {
		case <-ctx.Done():
			log.Println("shutting down")
			return

		case packet, ok := <-packets:
			if !ok {
				log.Println("packet stream closed")
				return
			}
			if err := p.Ingest(ctx, packet); err != nil {
				log.Printf("ingest error: %v", err)
			}

		case <-stuckTicker.C:
			exec.CheckStuck()

		case now := <-displacementTicker.C:
			elapsed := now.Sub(lastDisplacementTick).Seconds()
			lastDisplacementTick = now

			snapMu.Lock()
			snap, ok := latestSnap, hasLatestSnap
			snapMu.Unlock()
			if !ok {
				continue
			}
			if err := exec.UpdateDisplacement(ctx, elapsed, snap); err != nil {
				log.Printf("displacement update error: %v", err)
			}
		}
	}
}
