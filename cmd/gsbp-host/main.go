// Command gsbp-host is the reference host CLI: it connects to a
// device, runs the recovered init/start/data/stop/deinit application
// sequence (see SPEC_FULL.md §8), writes received samples to a CSV
// file, and optionally bridges them to Redis and exposes correlation
// statistics as Prometheus metrics — mirroring
// examples/GSBP_DevDummy__PC_Cpp/src/StandAloneProgram.cpp's golden
// path.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/worldwidemv/gsbp-go/pkg/appcmds"
	"github.com/worldwidemv/gsbp-go/pkg/dispatch"
	redisbridge "github.com/worldwidemv/gsbp-go/pkg/redis"
	"github.com/worldwidemv/gsbp-go/pkg/stats"
	"github.com/worldwidemv/gsbp-go/pkg/transport"
	"github.com/worldwidemv/gsbp-go/pkg/wire"

	"github.com/worldwidemv/gsbp-go/pkg/host"
)

// stallLimit and stallWindow mirror StandAloneProgram.cpp's watchdog:
// abort the data loop after this many consecutive empty polls within
// this window.
const (
	stallLimit  = 200
	stallWindow = 2 * time.Second
)

func main() {
	devicePath := flag.String("device", "/dev/ttyUSB0", "serial device path")
	baud := flag.Int("baud", 115200, "baud rate")
	readTimeout := flag.Duration("read-timeout", 11*time.Millisecond, "per-read timeout")
	sampleCount := flag.Int("samples", 100, "number of data values to collect")
	periodMS := flag.Uint("period-ms", 50, "data emission period in milliseconds")
	dataSize := flag.Uint("data-size", 8, "samples per data batch")
	increment := flag.Int("increment", 1, "per-batch increment applied by the device")
	outPath := flag.String("out", "Dummy_Data.csv", "CSV output path")
	redisAddr := flag.String("redis-addr", "", "optional Redis address for sample telemetry (disabled if empty)")
	redisPass := flag.String("redis-pass", "", "Redis password")
	redisDB := flag.Int("redis-db", 0, "Redis DB index")
	metricsAddr := flag.String("metrics-addr", "", "optional Prometheus metrics listen address (disabled if empty)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	router := &dispatch.MessageRouter{
		OnDebug:         func(m wire.Message) { log.Printf("device debug: %s", m.Text) },
		OnInfo:          func(m wire.Message) { log.Printf("device info: %s", m.Text) },
		OnWarning:       func(m wire.Message) { log.Printf("device warning: %s", m.Text) },
		OnError:         func(m wire.Message) { log.Printf("device error %d: %s", m.ErrorCode, m.Text) },
		OnCriticalError: func(m wire.Message) { log.Printf("device CRITICAL %d: %s", m.ErrorCode, m.Text) },
	}

	var redisClient *redisbridge.Client
	if *redisAddr != "" {
		var err error
		redisClient, err = redisbridge.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("gsbp-host: %v", err)
		}
		defer redisClient.Close()
	}

	samples := make(chan []int16, 16)
	handler := func(resp wire.Package, owningGlobalID uint64) bool {
		if resp.CommandID == appcmds.CmdAppData {
			samples <- appcmds.UnmarshalData(resp.Payload)
		}
		return false
	}

	client := host.New(router, handler)

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(stats.NewCollector(client))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("gsbp-host: metrics listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("gsbp-host: metrics server: %v", err)
			}
		}()
	}

	conn, err := transport.OpenSerial(*devicePath, *baud, *readTimeout)
	if err != nil {
		log.Fatalf("gsbp-host: open %s: %v", *devicePath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = client.Connect(ctx, conn, wire.DefaultDescriptor())
	cancel()
	if err != nil {
		log.Fatalf("gsbp-host: connect: %v", err)
	}
	defer client.Disconnect()

	info := client.NodeInfo()
	log.Printf("gsbp-host: node serial=%d protocol=%v firmware=%v class=%d",
		info.SerialNumber, info.VersionProtocol, info.VersionFirmware, info.DeviceClass)

	if status, err := client.GetStatus(context.Background()); err != nil {
		log.Printf("gsbp-host: get status: %v", err)
	} else {
		log.Printf("gsbp-host: status error=%s state=%d message=%q", client.ErrorString(int(status.ErrorCode)), status.State, status.Message)
	}

	// Relay commands pushed onto the "gsbp:commands" Redis list to the
	// device, matching SPEC_FULL.md §10's command-bus relay: an external
	// operator (or another service) can LPush "start"/"stop"/"reset"
	// without holding the serial connection itself.
	if redisClient != nil {
		cmdCtx, cmdCancel := context.WithCancel(context.Background())
		defer cmdCancel()
		go redisClient.WatchCommands(cmdCtx, "gsbp:commands", func(value string) {
			switch value {
			case "start":
				if _, err := client.SendAndWait(context.Background(), appcmds.CmdAppStart, nil, wire.CmdUniversalACK); err != nil {
					log.Printf("gsbp-host: redis command %q: %v", value, err)
				}
			case "stop":
				if _, err := client.SendAndWait(context.Background(), appcmds.CmdAppStop, nil, wire.CmdUniversalACK); err != nil {
					log.Printf("gsbp-host: redis command %q: %v", value, err)
				}
			case "reset":
				if _, _, err := client.Send(wire.CmdReset, nil); err != nil {
					log.Printf("gsbp-host: redis command %q: %v", value, err)
				}
			default:
				log.Printf("gsbp-host: redis command: unknown command %q", value)
			}
		})
	}

	cfg := appcmds.Init{DataPeriodMS: uint32(*periodMS), DataSize: uint16(*dataSize), Increment: int16(*increment)}
	payload, err := cfg.Marshal()
	if err != nil {
		log.Fatalf("gsbp-host: encode init: %v", err)
	}
	initCtx, initCancel := context.WithTimeout(context.Background(), time.Second)
	if _, err := client.SendAndWait(initCtx, appcmds.CmdAppInit, payload, wire.CmdUniversalACK); err != nil {
		initCancel()
		log.Fatalf("gsbp-host: init: %v", err)
	}
	initCancel()

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Second)
	if _, err := client.SendAndWait(startCtx, appcmds.CmdAppStart, nil, wire.CmdUniversalACK); err != nil {
		startCancel()
		log.Fatalf("gsbp-host: start: %v", err)
	}
	startCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("gsbp-host: create %s: %v", *outPath, err)
	}
	defer out.Close()
	w := csv.NewWriter(out)
	defer w.Flush()

	// stallLimit consecutive empty polls at this tick interval add up
	// to stallWindow of silence before the loop gives up, matching
	// StandAloneProgram.cpp's 200-iteration/2-second watchdog.
	tick := stallWindow / stallLimit

	collected := 0
	consecutiveEmpty := 0

collectLoop:
	for collected < *sampleCount {
		select {
		case <-sigCh:
			log.Printf("gsbp-host: interrupted after %d samples", collected)
			break collectLoop
		case batch := <-samples:
			consecutiveEmpty = 0
			for _, v := range batch {
				collected++
				if err := w.Write([]string{strconv.Itoa(collected), strconv.Itoa(int(v))}); err != nil {
					log.Printf("gsbp-host: csv write: %v", err)
				}
				if redisClient != nil {
					if err := redisClient.PublishSample("gsbp:data", strconv.Itoa(collected), int(v)); err != nil {
						log.Printf("gsbp-host: redis publish: %v", err)
					}
				}
				if collected >= *sampleCount {
					break
				}
			}
		case <-time.After(tick):
			consecutiveEmpty++
			if consecutiveEmpty >= stallLimit {
				log.Printf("gsbp-host: data stalled, aborting after %d samples", collected)
				break collectLoop
			}
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	if _, err := client.SendAndWait(stopCtx, appcmds.CmdAppStop, nil, wire.CmdUniversalACK); err != nil {
		log.Printf("gsbp-host: stop: %v", err)
	}
	stopCancel()

	deinitCtx, deinitCancel := context.WithTimeout(context.Background(), time.Second)
	if _, err := client.SendAndWait(deinitCtx, appcmds.CmdAppDeinit, nil, wire.CmdUniversalACK); err != nil {
		log.Printf("gsbp-host: deinit: %v", err)
	}
	deinitCancel()

	fmt.Printf("collected %d samples into %s\n", collected, *outPath)
}
