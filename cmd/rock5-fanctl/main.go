package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rock5-fanctl/internal/config"
	"rock5-fanctl/internal/fancontrol"
	"rock5-fanctl/internal/tach"
)

func main() {
	var configPath string
	var testOnly bool
	flag.StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when omitted)")
	flag.BoolVar(&testOnly, "test", false, "Run hardware init and self-test, restore the thermal target level, then exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("rock5-fanctl starting")
	log.Printf("thermal zone=%s pwm addr=%s tach gpio=%d", cfg.Fan.ThermalZone, cfg.Fan.PWMNodeAddr, cfg.Tach.GPIO)

	mon := tach.Open(tach.Config{
		GPIO:         cfg.Tach.GPIO,
		Backend:      cfg.Tach.Backend,
		PulsesPerRev: cfg.Tach.PulsesPerRev,
	})
	mon.Start()
	defer mon.Close()

	ctrl := fancontrol.Discover(cfg.Fan.PWMNodeAddr, cfg.Fan.PWMPeriodNS, cfg.Fan.CoolingDevice)

	svc := fancontrol.New(fancontrol.Config{
		ThermalZone:            cfg.Fan.ThermalZone,
		PollInterval:           cfg.Fan.PollInterval,
		RPMLogDelta:            cfg.Fan.RPMLogDelta,
		SelfTest:               cfg.SelfTest.Enable || testOnly,
		SelfTestDwell:          cfg.SelfTest.Dwell,
		SelfTestSampleInterval: cfg.SelfTest.SampleInterval,
		TestOnly:               testOnly,
	}, ctrl, mon)

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("fan control stopped: %v", err)
	}
	log.Printf("rock5-fanctl stopping")
}
