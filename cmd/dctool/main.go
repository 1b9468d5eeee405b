// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"divecomputer/internal/config"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/dclog"
	"divecomputer/pkg/dc/openfamily"
	"divecomputer/pkg/dc/transport"
	"divecomputer/pkg/dc/transport/serialtransport"
	"divecomputer/pkg/dc/transport/usbtransport"

	"github.com/google/gousb"
)

var (
	vendor      = flag.String("vendor", "", "device vendor, e.g. \"Suunto\" (required)")
	product     = flag.String("product", "", "device product, e.g. \"Vyper\" (required)")
	fingerprint = flag.String("fingerprint", "", "hex-encoded fingerprint of the last downloaded dive")
	verbose     = flag.Bool("v", false, "log Debug and Info records in addition to Warning/Error")
)

// dctool is a thin wrapper over the device lifecycle: open the
// configured transport, open the matching device family, apply a
// fingerprint so already-downloaded dives are skipped, subscribe to
// progress/status events, walk every new dive, and close.
func main() {
	flag.Parse()

	if *verbose {
		dclog.SetLevel(dclog.LevelAll)
	} else {
		dclog.SetLevel(dclog.LevelWarning)
	}
	dclog.SetSink(func(r dclog.Record) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", r.Level, r.Message)
	})

	if *vendor == "" || *product == "" {
		fmt.Fprintln(os.Stderr, "dctool: -vendor and -product are required")
		os.Exit(2)
	}

	cfg := config.MustGetDeviceConfig()

	d, ok := findDescriptor(*vendor, *product)
	if !ok {
		fmt.Fprintf(os.Stderr, "dctool: no registered device matches %s %s\n", *vendor, *product)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, d, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "dctool: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, d descriptor.Descriptor, cfg config.DeviceConfig) error {
	t, err := openTransport(cfg)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	dev, err := openfamily.Open(ctx, d, t)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer dev.Close()

	if *fingerprint != "" {
		fp, err := hex.DecodeString(*fingerprint)
		if err != nil {
			return fmt.Errorf("decode fingerprint: %w", err)
		}
		if err := dev.SetFingerprint(fp); err != nil {
			return fmt.Errorf("set fingerprint: %w", err)
		}
	}

	if err := dev.SetEvents(allEvents, printEvent); err != nil {
		return fmt.Errorf("set events: %w", err)
	}

	count := 0
	err = dev.Foreach(ctx, func(data, fp []byte) bool {
		count++
		fmt.Printf("dive %d: %d bytes, fingerprint %s\n", count, len(data), hex.EncodeToString(fp))
		return true
	})
	if err != nil {
		return fmt.Errorf("foreach: %w", err)
	}

	fmt.Printf("dctool: downloaded %d dive(s)\n", count)
	return nil
}

const allEvents = device.EventWaiting | device.EventProgress | device.EventDevInfo | device.EventClock | device.EventVendor

func printEvent(mask device.EventMask, p *device.Progress, di *device.DevInfo, c *device.Clock, v *device.Vendor) {
	switch {
	case mask == device.EventWaiting:
		fmt.Fprintln(os.Stderr, "dctool: waiting for device...")
	case mask == device.EventProgress && p != nil:
		fmt.Fprintf(os.Stderr, "dctool: progress %d/%d\n", p.Current, p.Maximum)
	case mask == device.EventDevInfo && di != nil:
		fmt.Fprintf(os.Stderr, "dctool: model %s, firmware %s, serial %s\n", di.Model, di.Firmware, di.Serial)
	case mask == device.EventClock && c != nil:
		fmt.Fprintf(os.Stderr, "dctool: device clock %d, host clock %d\n", c.DeviceTicks, c.HostTicks)
	}
}

func findDescriptor(vendor, product string) (descriptor.Descriptor, bool) {
	r := descriptor.All()
	for {
		d, ok := r.Next()
		if !ok {
			return descriptor.Descriptor{}, false
		}
		if d.Vendor == vendor && d.Product == product {
			return d, true
		}
	}
}

func openTransport(cfg config.DeviceConfig) (transport.Transport, error) {
	switch cfg.Transport {
	case "serial":
		t, err := serialtransport.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := t.Configure(transport.Config{Baud: cfg.Baud, DataBits: 8}); err != nil {
			return nil, err
		}
		return t, nil
	case "usb":
		return usbtransport.Open(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID), usbtransport.Endpoints{
			ConfigNum: 1, Interface: 0, AltSetting: 0, In: 0x81, Out: 0x01,
		})
	default:
		return nil, fmt.Errorf("unsupported transport %q (supported: serial, usb)", cfg.Transport)
	}
}
