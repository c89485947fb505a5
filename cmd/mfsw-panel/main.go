package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/env/v11"
	mfsw "github.com/caarlos0/mfsw-panel"
	"github.com/caarlos0/mfsw-panel/notify"
	"github.com/caarlos0/mfsw-panel/panel"
	"github.com/caarlos0/mfsw-panel/web"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "server",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const manufacturer = "MFSW"

func main() {
	log.Info(
		"mfsw-panel",
		"version", version,
		"commit", commit,
		"date", date,
		"info", strings.Join([]string{
			"Control panel for the MFSW home monitoring device",
			"© Carlos Alexandro Becker",
			"https://becker.software",
		}, "\n"),
	)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}
	if cfg.Debug {
		for _, l := range []*logp.Logger{log, mfsw.Logger, panel.Logger, notify.Logger, web.Logger} {
			l.SetLevel(logp.DebugLevel)
		}
	}

	device, err := cfg.client()
	if err != nil {
		log.Fatal("could not init device client", "err", err)
	}
	source, err := cfg.source()
	if err != nil {
		log.Fatal("could not init push channel", "err", err)
	}
	log.Info(
		"loaded config",
		"device", device.URL(),
		"notify", cfg.Notify,
		"buzzer-poll", cfg.BuzzerPoll,
		"homekit", cfg.HomeKit,
	)

	page := web.New()
	var homekit *HomeKit
	controller := panel.New(
		instrumented{api: device},
		page,
		panel.WithBuzzerPoll(cfg.BuzzerPoll),
		panel.WithStateHook(func(state panel.State) {
			updateGauges(state)
			if homekit != nil {
				homekit.Update(state)
			}
		}),
	)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c
		log.Info("stopping server")
		signal.Stop(c)
		cancel()
	}()

	var serve func(ctx context.Context) error
	var addr string
	if cfg.HomeKit {
		macAddr, err := mfsw.MacAddress(device.Host())
		if err != nil {
			log.Warn(
				"could not get the mac address, needs 'cap_net_raw+ep' capabilities",
				"err", err,
			)
		}
		homekit = setupHomeKit(controller, macAddr)

		bridge := accessory.NewBridge(accessory.Info{
			Name:         "MFSW Bridge",
			Manufacturer: manufacturer,
			Firmware:     version,
		})
		server, err := hap.NewServer(hap.NewFsStore(cfg.HomeKitDB), bridge.A, homekit.Accessories()...)
		if err != nil {
			log.Fatal("fail to create server", "error", err)
		}
		server.Addr = cfg.Address
		server.Pin = cfg.HomeKitPin
		server.ServeMux().Handle("/metrics", promhttp.Handler())
		page.Mount(server.ServeMux(), controller)
		serve = server.ListenAndServe
		addr = server.Addr
	} else {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		page.Mount(mux, controller)
		server := &http.Server{
			Addr:              cfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 10,
		}
		serve = func(ctx context.Context) error {
			go func() {
				<-ctx.Done()
				sctx, scancel := context.WithTimeout(context.Background(), time.Second*5)
				defer scancel()
				_ = server.Shutdown(sctx)
			}()
			return server.ListenAndServe()
		}
		addr = server.Addr
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("controller stopped", "err", err)
		}
	}()

	if source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Run(ctx, func(on bool) {
				notifyCounter.Inc()
				controller.PushBuzzer(on)
			}); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("push channel stopped", "err", err)
			}
		}()
	}

	log.Info("starting server", "addr", addr)
	if err := serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to close server", "err", err)
	}
	cancel()
	page.Close()
	wg.Wait()
}

func boolAs[T int | float64](b bool) T {
	if b {
		return 1
	}
	return 0
}
