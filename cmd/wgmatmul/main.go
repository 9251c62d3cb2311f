package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openfluke/wgmatmul/detector"
	"github.com/openfluke/wgmatmul/gpu"
	"github.com/openfluke/wgmatmul/matrix"
)

type options struct {
	configPath  string
	backendType string
	tileX       uint32
	tileY       uint32
	debug       bool
}

func (o *options) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&o.backendType, "backend", "", "request a specific backend (vulkan, metal, d3d12, opengl)")
	fs.Uint32Var(&o.tileX, "tile-x", 0, "workgroup local size along output columns (0 = detect)")
	fs.Uint32Var(&o.tileY, "tile-y", 0, "workgroup local size along output rows (0 = detect)")
	fs.BoolVar(&o.debug, "debug", false, "log dispatch diagnostics")
}

// config layers flags over the config file and environment.
func (o *options) config(fs *pflag.FlagSet) (gpu.Config, error) {
	cfg := gpu.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = gpu.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	} else if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if fs.Changed("backend") {
		cfg.Backend = gpu.BackendExplicit
		cfg.BackendType = o.backendType
	}
	if fs.Changed("tile-x") {
		cfg.TileX = o.tileX
	}
	if fs.Changed("tile-y") {
		cfg.TileY = o.tileY
	}
	if fs.Changed("debug") {
		cfg.Debug = o.debug
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "wgmatmul",
		Short:         "Dense matrix multiplication on a WebGPU compute device",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())
	root.AddCommand(newRunCmd(opts), newInfoCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	var m, k, n int
	var fill float32
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Multiply an MxK by a KxN constant matrix and verify the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			a, err := constant(m, k, fill)
			if err != nil {
				return err
			}
			b, err := constant(k, n, fill)
			if err != nil {
				return err
			}

			c, err := gpu.NewContext(cfg)
			if err != nil {
				return err
			}
			defer c.Release()
			fmt.Printf("Using GPU Adapter: %s (%s, %s), tile %s\n", c.Report.Name, c.Report.Backend, c.Report.AdapterType, c.Tile)

			start := time.Now()
			out, err := gpu.Multiply(cmd.Context(), c, a, b)
			if err != nil {
				return err
			}
			fmt.Printf("%s x %s -> %s in %v\n", a.Shape(), b.Shape(), out.Shape, time.Since(start))

			want := fill * fill * float32(k)
			for i, v := range out.Data {
				if v != want {
					return fmt.Errorf("element (%d, %d) = %v, want %v", i/out.Columns, i%out.Columns, v, want)
				}
			}
			fmt.Printf("verified %d elements == %v\n", len(out.Data), want)
			return nil
		},
	}
	cmd.Flags().IntVar(&m, "m", 1000, "rows of A")
	cmd.Flags().IntVar(&k, "k", 100, "columns of A / rows of B")
	cmd.Flags().IntVar(&n, "n", 10000, "columns of B")
	cmd.Flags().Float32Var(&fill, "fill", 1.0, "value of every entry in A and B")
	return cmd
}

func newInfoCmd(opts *options) *cobra.Command {
	var adapterOnly bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the selected adapter's capabilities as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			report, err := describe(cfg, adapterOnly)
			if err != nil {
				return err
			}
			s, err := report.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&adapterOnly, "adapter-only", false, "report the adapter without creating a device")
	return cmd
}

func describe(cfg gpu.Config, adapterOnly bool) (*detector.Report, error) {
	if adapterOnly {
		return gpu.DescribeAdapter(cfg)
	}
	c, err := gpu.NewContext(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Release()
	return c.Report, nil
}

func constant(rows, cols int, v float32) (matrix.Matrix, error) {
	if rows < 0 || cols < 0 {
		return matrix.Matrix{}, fmt.Errorf("negative dimension %dx%d", rows, cols)
	}
	e := make([]float32, rows*cols)
	for i := range e {
		e[i] = v
	}
	return matrix.New(rows, cols, e)
}
