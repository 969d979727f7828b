package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/internal/core/decoder"
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/internal/metrics"
	"firestige.xyz/speadcap/internal/pipeline"
	"firestige.xyz/speadcap/internal/processor"
	"firestige.xyz/speadcap/pkg/plugin"
	_ "firestige.xyz/speadcap/plugins"
	"firestige.xyz/speadcap/plugins/reporter/console"
)

// decodeOptions holds flag values. Only flags the user set override the
// configuration file.
type decodeOptions struct {
	source        string
	version       uint8
	flavour       string
	numHeaders    uint16
	payloadLen    int
	missingLength string
	isolate       bool
	workers       int
	format        string
	headersOnly   bool
	hex           bool
	port          uint16
	base          string

	changed func(name string) bool
}

var decodeOpts decodeOptions

var decodeCmd = &cobra.Command{
	Use:   "decode [input]",
	Short: "Decode SPEAD packets from a words dump or capture file",
	Long: `Decode every word sequence of the input into a SPEAD packet.

The input is a text dump of 64-bit words (source "words", one packet per
blank-line separated block) or a pcap/pcapng capture (source "pcap", one
packet per UDP datagram). "-" reads stdin. Files ending in .gz, .zst or .lz4
are decompressed on the fly.

Examples:
  speadcap decode packets.txt
  speadcap decode --source pcap --port 7148 capture.pcapng
  speadcap decode --flavour 64,40 --version 4 --isolate dump.txt.gz
  speadcap decode -c speadcap.yml --format json -`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := ""
		if len(args) == 1 {
			input = args[0]
		}
		decodeOpts.changed = cmd.Flags().Changed

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runDecode(ctx, configFile, input, decodeOpts, cmd.OutOrStdout()); err != nil {
			exitWithError("decode failed", err)
		}
	},
}

func init() {
	addDecoderFlags(decodeCmd.Flags(), &decodeOpts)
	f := decodeCmd.Flags()
	f.StringVar(&decodeOpts.source, "source", "words", "source plugin: words or pcap")
	f.IntVar(&decodeOpts.payloadLen, "payload-len", 0, "expected payload length in words")
	f.StringVar(&decodeOpts.missingLength, "missing-length", "require", "packets without a length header: require or skip")
	f.BoolVar(&decodeOpts.isolate, "isolate", false, "keep decoding after a bad sequence and report all failures")
	f.IntVar(&decodeOpts.workers, "workers", 1, "sequences decoded concurrently")
	f.StringVar(&decodeOpts.format, "format", "text", "console output format: text, json or yaml")
	f.BoolVar(&decodeOpts.headersOnly, "headers-only", false, "omit payload words from the output")
	f.BoolVar(&decodeOpts.hex, "hex", false, "print header values in hex")
	f.Uint16Var(&decodeOpts.port, "port", 0, "UDP destination port to keep (pcap source)")
}

// addDecoderFlags registers the flags shared by decode and find.
func addDecoderFlags(f *pflag.FlagSet, o *decodeOptions) {
	f.Uint8Var(&o.version, "version", 4, "expected SPEAD protocol version")
	f.StringVar(&o.flavour, "flavour", "64,48", "expected flavour as <item pointer bits>,<address bits>")
	f.Uint16Var(&o.numHeaders, "num-headers", 0, "expected number of item pointers")
	f.StringVar(&o.base, "base", "auto", "number base of a words dump: auto, hex or dec")
}

func runDecode(ctx context.Context, configPath, input string, opts decodeOptions, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := applyDecodeOverrides(cfg, input, opts); err != nil {
		return err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return err
	}

	proc, err := newProcessor(cfg, log.GetLogger().WithField("cmd", "decode"))
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.WithoutCancel(ctx))
	}

	src, err := plugin.NewSource(cfg.Source.Name, cfg.Source.Config)
	if err != nil {
		return err
	}

	builder := pipeline.NewBuilder().WithSource(src).WithProcessor(proc)
	for _, rc := range cfg.Reporters {
		r, err := newReporter(rc, out)
		if err != nil {
			return err
		}
		builder.WithReporters(r)
	}
	p, err := builder.Build()
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

// newProcessor builds the decoding stage from the validated configuration.
func newProcessor(cfg *config.Config, logger log.Logger) (*processor.Processor, error) {
	policy, err := decoder.ParseLengthPolicy(cfg.Decoder.MissingLength)
	if err != nil {
		return nil, err
	}
	mode, err := processor.ParseFailureMode(cfg.Batch.FailureMode)
	if err != nil {
		return nil, err
	}
	return processor.New(processor.Config{
		Expect:        cfg.Decoder.Expectations(),
		MissingLength: policy,
		FailureMode:   mode,
		Workers:       cfg.Batch.Workers,
		Logger:        logger,
		Observer:      metrics.Observer{},
	})
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// applyDecodeOverrides folds the set flags and the positional input into cfg.
// Without configured reporters the packets go to the console.
func applyDecodeOverrides(cfg *config.Config, input string, opts decodeOptions) error {
	changed := opts.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if changed("source") {
		if opts.source != cfg.Source.Name {
			cfg.Source.Config = nil
		}
		cfg.Source.Name = opts.source
	}
	if changed("version") {
		cfg.Decoder.Version = int(opts.version)
	}
	if changed("flavour") {
		cfg.Decoder.Flavour = opts.flavour
	}
	if changed("num-headers") {
		cfg.Decoder.NumHeaders = decoder.Ptr(int(opts.numHeaders))
	}
	if changed("payload-len") {
		cfg.Decoder.PayloadLen = decoder.Ptr(opts.payloadLen)
	}
	if changed("missing-length") {
		cfg.Decoder.MissingLength = opts.missingLength
	}
	if changed("isolate") && opts.isolate {
		cfg.Batch.FailureMode = processor.Isolate.String()
	}
	if changed("workers") {
		cfg.Batch.Workers = opts.workers
	}

	src := maps.Clone(cfg.Source.Config)
	if src == nil {
		src = map[string]any{}
	}
	if input != "" {
		src["path"] = input
	}
	if changed("port") {
		src["port"] = opts.port
	}
	if changed("base") {
		src["base"] = opts.base
	}
	cfg.Source.Config = src

	if len(cfg.Reporters) == 0 {
		cfg.Reporters = []config.PluginConfig{{Name: console.Name}}
	}
	for i := range cfg.Reporters {
		if cfg.Reporters[i].Name != console.Name {
			continue
		}
		rc := maps.Clone(cfg.Reporters[i].Config)
		if rc == nil {
			rc = map[string]any{}
		}
		if changed("format") {
			rc["format"] = opts.format
		}
		if changed("headers-only") {
			rc["headers_only"] = opts.headersOnly
		}
		if changed("hex") {
			rc["hex"] = opts.hex
		}
		cfg.Reporters[i].Config = rc
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// newReporter creates a reporter; console reporters write to out.
func newReporter(rc config.PluginConfig, out io.Writer) (plugin.Reporter, error) {
	if rc.Name != console.Name {
		return plugin.NewReporter(rc.Name, rc.Config)
	}
	r := console.NewWithWriter(out)
	if err := r.Init(rc.Config); err != nil {
		return nil, fmt.Errorf("reporter %s: init failed: %w", rc.Name, err)
	}
	return r, nil
}
