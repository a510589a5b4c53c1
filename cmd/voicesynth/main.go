package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/op/go-logging"

	voicesynth "github.com/mqce/voice-synth-experiment"
	"github.com/mqce/voice-synth-experiment/internal/analysis"
	"github.com/mqce/voice-synth-experiment/internal/config"
	"github.com/mqce/voice-synth-experiment/internal/glottis"
	"github.com/mqce/voice-synth-experiment/internal/sequencer"
)

var log = logging.MustGetLogger("voicesynth")

const logFormat = `%{time:15:04:05.000} %{module} %{level:.4s} %{message}`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	var (
		sampleRate = flag.Int("sample-rate", cfg.SampleRate, "output sample rate")
		frequency  = flag.Float64("frequency", cfg.Frequency, "initial pitch in Hz")
		tenseness  = flag.Float64("tenseness", cfg.Tenseness, "initial vocal effort, 0..1")
		seconds    = flag.Float64("seconds", cfg.Seconds, "render length; 0 = script length plus a short tail")
		presetName = flag.String("preset", cfg.Preset, "built-in script: "+strings.Join(sequencer.PresetNames(), "|"))
		scriptPath = flag.String("script", "", "path to a control script (overrides -preset)")
		outPath    = flag.String("out", "voice.wav", "WAV file for offline rendering")
		chainDesc  = flag.String("effects", cfg.Effects, `effect chain, e.g. "eq 1,1.2,1,0.8; limiter -1"`)
		reverb     = flag.Bool("reverb", false, "append a room reverb to the effect chain")
		wobble     = flag.Bool("wobble", true, "let the pitch drift slowly as a human voice does")
		live       = flag.Bool("live", false, "play through the audio device instead of writing a file")
		loop       = flag.Bool("loop", false, "with -live, repeat the script until interrupted")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		list       = flag.Bool("list", false, "print the built-in presets and exit")
	)
	flag.Parse()
	setupLogging(cfg.Level())

	if *list {
		for _, name := range sequencer.PresetNames() {
			fmt.Println(name)
		}
		return
	}

	script, err := resolveScript(*scriptPath, *presetName)
	if err != nil {
		log.Fatal(err)
	}

	desc := *chainDesc
	if *reverb {
		desc = strings.TrimSuffix(strings.TrimSpace(desc), ";") + "; reverb 0.6,0.7,0.2; limiter -1"
	}
	gp := glottis.DefaultParams()
	gp.Frequency = *frequency
	gp.Tenseness = *tenseness
	gp.AutoWobble = *wobble
	opts := []voicesynth.Option{
		voicesynth.WithGlottisParams(gp),
		voicesynth.WithEffectsSpec(desc),
	}

	if *live {
		if err := playLive(*sampleRate, script, *seconds, *loop, *volume, cfg.Buffer, opts); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := renderFile(*outPath, *sampleRate, script, *seconds, *volume, opts); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(level logging.Level) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(logFormat))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}

func resolveScript(path, preset string) (sequencer.Script, error) {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return sequencer.Script{}, err
		}
		return sequencer.Parse(path, string(data))
	}
	return sequencer.Preset(strings.ToLower(strings.TrimSpace(preset)))
}

func renderFile(path string, sampleRate int, script sequencer.Script, seconds, volume float64, opts []voicesynth.Option) error {
	opts = append(opts, voicesynth.WithOutputGain(voicesynth.DefaultOutputGain*volume))
	start := time.Now()
	samples, err := voicesynth.RenderScript(sampleRate, script, seconds, opts...)
	if err != nil {
		return err
	}
	log.Debugf("rendered %q: %d samples in %v", script.Name, len(samples), time.Since(start))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := voicesynth.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	r := analysis.Analyze(samples, sampleRate)
	log.Infof("wrote %s: %.2fs, rms %.4f, peak %.4f, f0 %.1f Hz, harmonicity %.2f",
		path, float64(len(samples))/float64(sampleRate), r.RMS, r.Peak, r.Fundamental, r.Harmonicity)
	return nil
}

func playLive(sampleRate int, script sequencer.Script, seconds float64, loop bool, volume float64, buffer time.Duration, opts []voicesynth.Option) error {
	pl, err := voicesynth.NewPlayer(sampleRate,
		voicesynth.WithSynthOptions(opts...),
		voicesynth.WithBufferSize(buffer),
		voicesynth.WithLoopPlayback(loop),
	)
	if err != nil {
		return err
	}
	pl.SetMasterVolume(volume)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer cancel()
	}

	ch := pl.Watch()
	if err := pl.Play(ctx, script); err != nil {
		return err
	}
	loops := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return pl.Stop()
		case event := <-ch:
			switch event.Kind {
			case voicesynth.EventPlaybackEnded:
				log.Info("playback completed")
				return pl.Stop()
			case voicesynth.EventLoopCompleted:
				loops++
				log.Infof("loop %d completed", loops)
			case voicesynth.EventScript:
				log.Debugf("%.2fs %s", event.Script.At, event.Script.Kind)
			}
		}
	}
}
