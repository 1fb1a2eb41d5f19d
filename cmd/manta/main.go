package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"golang.org/x/sync/errgroup"

	"github.com/manta-sdr/manta/pkg/manta"
	"github.com/manta-sdr/manta/pkg/manta/config"
	"github.com/manta-sdr/manta/pkg/manta/device"
	"github.com/manta-sdr/manta/pkg/manta/device/file"
	hackrfDevice "github.com/manta-sdr/manta/pkg/manta/device/hackrf"
	"github.com/manta-sdr/manta/pkg/manta/device/rtlsdr"
	"github.com/manta-sdr/manta/pkg/manta/diag"
	"github.com/manta-sdr/manta/pkg/manta/output"
	"github.com/manta-sdr/manta/pkg/types"
	"github.com/manta-sdr/manta/pkg/util"
)

const fileReadDelay = time.Microsecond * 16384

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "manta.yaml", "YAML config file")

	flag.Parse()
	if configFile == nil {
		flag.Usage()
		os.Exit(1)
	}

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var opts config.Config
	if err := yaml.Unmarshal(configContents, &opts); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}
	if err := opts.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	registry := device.NewRegistry()
	registry.Register("hackrf", func() (device.Device, error) {
		t, err := hackrfDevice.NewUSBTransport()
		if err != nil {
			return nil, err
		}
		return hackrfDevice.New(t, hackrfDevice.WithLogger(log.Logger)), nil
	})
	registry.Register("rtlsdr", func() (device.Device, error) {
		return rtlsdr.New(opts.RTLSDRDeviceIndex), nil
	})
	registry.Register("file", func() (device.Device, error) {
		return file.New(opts.PlaybackLocation, opts.SampleRate, fileReadDelay), nil
	})

	if opts.PlaybackLocation != "" {
		opts.Device = "file"
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
	if opts.Device == "" {
		opts.Device = "hackrf"
	}

	log.Info().Str("device", opts.Device).Msg("initializing device...")
	dev, err := registry.New(opts.Device)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Err(err).Msg("failed to initialize device")
	}

	vfos := make([]types.VFO, 0, len(opts.VFOs))
	offsets := make([]int, 0, len(opts.VFOs))
	for _, v := range opts.VFOs {
		vfos = append(vfos, v.Descriptor())
		offsets = append(offsets, v.Offset)
		log.Info().
			Int("vfo", v.ID).
			Str("offset", util.KHzToString(v.Offset)).
			Str("mode", v.Mode).
			Msg("configured vfo")
	}
	if low, high := util.FrequencyRange(offsets...); high-low > opts.SampleRate {
		log.Fatal().Msg("vfo offsets span more than the captured bandwidth")
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		writeAPI = influxdb2.NewClient(opts.InfluxDB.Host, "").WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	outputRate := opts.OutputRate
	if outputRate == 0 {
		outputRate = 48000
	}

	audioOutputs := []manta.AudioOutput{}
	if len(opts.OutputDestinations) > 0 {
		audioOutputs = append(audioOutputs,
			output.NewOpusUDPOutput(opts.OutputDestinations, outputRate, writeAPI))
	} else {
		audioOutputs = append(audioOutputs,
			output.NewRawAudioOutput(os.Stdout, manta.MixedStreamID))
	}

	receiverOpts := []manta.ReceiverOption{
		manta.WithInfluxDB(writeAPI),
		manta.WithLogger(log.Logger),
	}
	if opts.DiagServer.Port != 0 {
		receiverOpts = append(receiverOpts, manta.WithDiagServer(diag.NewServer(opts.DiagServer.Port)))
	}

	receiver, err := manta.NewReceiver(dev,
		manta.Options{
			CenterFreq:        opts.CenterFreq,
			SampleRate:        opts.SampleRate,
			AudioOutputRate:   outputRate,
			Gain:              opts.Gain,
			AmpEnabled:        opts.AmpEnabled,
			AntennaPower:      opts.AntennaPower,
			StrategyThreshold: opts.StrategyThreshold,
			VFOs:              vfos,
			AudioOutputs:      audioOutputs,
		}, receiverOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receiver")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {

		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return receiver.Stop()
	})

	eg.Go(func() error {
		return receiver.Start(ctx)
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}
