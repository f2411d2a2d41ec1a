// blockrep inspects heap images.
//
//	blockrep inspect --schema types.jsonc --type env heap.img
//	blockrep inspect -i heap.img
//	blockrep stats heap.img
//	blockrep recompress --compression zstd in.img out.img
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/blockrep/arena"
	"github.com/wippyai/blockrep/config"
	"github.com/wippyai/blockrep/heap"
	"github.com/wippyai/blockrep/image"
	"github.com/wippyai/blockrep/schema"
	"github.com/wippyai/blockrep/transcoder"
	"github.com/wippyai/blockrep/value"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: blockrep inspect [--schema file] [--type name] [-i] <image>")
	fmt.Fprintln(w, "       blockrep stats <image>")
	fmt.Fprintln(w, "       blockrep recompress --compression none|lz4|zstd <in> <out>")
}

type globals struct {
	cfg    *config.Config
	styled bool
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return fmt.Errorf("missing command")
	}
	cmd, args := args[0], args[1:]

	var (
		configPath  string
		schemaPath  string
		typeName    string
		compression string
		interactive bool
		verbose     bool
	)
	fs := pflag.NewFlagSet("blockrep "+cmd, pflag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvVar+")")
	fs.BoolVarP(&verbose, "verbose", "v", false, "log allocation and validation details")
	switch cmd {
	case "inspect":
		fs.StringVarP(&schemaPath, "schema", "s", "", "JSONC schema the image was captured against")
		fs.StringVarP(&typeName, "type", "t", "", "schema type of the image root")
		fs.BoolVarP(&interactive, "interactive", "i", false, "browse the value tree")
	case "stats":
	case "recompress":
		fs.StringVarP(&compression, "compression", "c", "", "target compression (default from configuration)")
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	g := &globals{styled: isTerminal(stdout)}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	g.cfg = cfg
	if verbose {
		logger := newLogger()
		defer func() { _ = logger.Sync() }()
		transcoder.SetLogger(logger)
		heap.SetLogger(logger)
		arena.SetLogger(logger)
	}

	switch cmd {
	case "inspect":
		if fs.NArg() != 1 {
			return fmt.Errorf("inspect takes one image, got %d arguments", fs.NArg())
		}
		if schemaPath == "" {
			schemaPath = cfg.Schema.Path
		}
		return g.inspect(stdout, fs.Arg(0), schemaPath, typeName, interactive)
	case "stats":
		if fs.NArg() != 1 {
			return fmt.Errorf("stats takes one image, got %d arguments", fs.NArg())
		}
		return g.stats(stdout, fs.Arg(0))
	default:
		if fs.NArg() != 2 {
			return fmt.Errorf("recompress takes an input and an output image, got %d arguments", fs.NArg())
		}
		c := cfg.Compression()
		if compression != "" {
			if c, err = image.ParseCompression(compression); err != nil {
				return err
			}
		}
		return g.recompress(stdout, fs.Arg(0), fs.Arg(1), c)
	}
}

// loadConfig reads path, or BLOCKREP_CONFIG when set, or falls back to
// the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvVar) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func newLogger() *zap.Logger {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err == nil {
			return logger
		}
	}
	logger, err := zap.NewProduction(zap.IncreaseLevel(zapcore.DebugLevel))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// restore loads the image at path. With a schema the image fingerprint
// must match it; without one only the block structure is read.
func (g *globals) restore(path, schemaPath string) (*image.Image, *schema.Set, *heap.Heap, value.Value, error) {
	img, err := image.ReadFile(path)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if schemaPath == "" {
		h, root, err := image.RestoreUnchecked(img, g.cfg.HeapOptions()...)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		return img, nil, h, root, nil
	}

	set, err := schema.LoadFile(schemaPath)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if err := set.Seal(); err != nil {
		return nil, nil, nil, 0, err
	}
	h, root, err := image.Restore(img, set, g.cfg.HeapOptions()...)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	return img, set, h, root, nil
}

func (g *globals) inspect(w io.Writer, path, schemaPath, typeName string, interactive bool) error {
	img, set, h, root, err := g.restore(path, schemaPath)
	if err != nil {
		return err
	}

	var tree *node
	walk := newWalker(h, set)
	switch {
	case typeName != "" && set == nil:
		return fmt.Errorf("--type requires --schema")
	case typeName != "":
		desc, ok := set.Lookup(typeName)
		if !ok {
			return fmt.Errorf("type %q is not defined in %s", typeName, schemaPath)
		}
		tree = walk.typed("root", root, desc)
	default:
		tree = walk.raw("root", root)
	}

	if interactive {
		return runInteractive(path, img, tree)
	}
	p := &printer{w: w, styled: g.styled}
	p.title(path)
	p.tree(tree)
	return nil
}

func (g *globals) stats(w io.Writer, path string) error {
	img, _, h, _, err := g.restore(path, "")
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	var fields uint64
	if err := h.Walk(func(b heap.Block) error {
		switch b.Tag() {
		case value.TagString:
			counts["string"]++
		case value.TagDouble:
			counts["double"]++
		default:
			counts["structured"]++
			fields += uint64(b.Size())
		}
		return nil
	}); err != nil {
		return err
	}

	p := &printer{w: w, styled: g.styled}
	p.title(path)
	p.table([][2]string{
		{"id", img.ID.String()},
		{"schema", img.Schema.String()},
		{"version", fmt.Sprint(img.Version)},
		{"root", img.Root.String()},
		{"compression", img.Compression.String()},
		{"payload", fmt.Sprintf("%d bytes", len(img.Payload))},
		{"image", fmt.Sprintf("%d bytes", img.Used)},
		{"blocks", fmt.Sprint(h.Blocks())},
		{"structured", fmt.Sprintf("%d (%d fields)", counts["structured"], fields)},
		{"strings", fmt.Sprint(counts["string"])},
		{"doubles", fmt.Sprint(counts["double"])},
	})
	return nil
}

func (g *globals) recompress(w io.Writer, in, out string, c image.Compression) error {
	src, err := image.ReadFile(in)
	if err != nil {
		return err
	}
	if _, _, err := image.RestoreUnchecked(src, g.cfg.HeapOptions()...); err != nil {
		return err
	}
	img, err := image.Recompress(src, c)
	if err != nil {
		return err
	}
	if err := image.WriteFile(out, img); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s %d bytes -> %s %d bytes\n",
		out, src.Compression, len(src.Payload), img.Compression, len(img.Payload))
	return nil
}
