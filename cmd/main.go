package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"opstool"
	"opstool/analyze"
	"opstool/load"
	"opstool/model"
	"opstool/report"
	"opstool/types"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// flags 命令行参数
type flags struct {
	options  string // 控制器配置 yaml
	params   string // 模型参数 yaml
	protocol string // 加载制度文件
	targets  string // 命令行目标位移
	maxStep  float64
	node     int
	dof      int
	dt       float64
	steps    int
	jsonOut  string
	htmlOut  string
	pngOut   string
	metrics  string
	serve    string
	progress bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "opstool",
		Short:         "以自适应回退策略驱动非线性弹簧链分析",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	pf := root.PersistentFlags()
	pf.StringVarP(&f.options, "options", "c", "", "控制器配置文件 (yaml)")
	pf.StringVarP(&f.params, "model", "m", "", "模型参数文件 (yaml)")
	pf.StringVar(&f.jsonOut, "json", "", "输出子步记录 (json)")
	pf.StringVar(&f.htmlOut, "html", "", "输出子步图表 (html)")
	pf.StringVar(&f.pngOut, "png", "", "输出步长曲线 (png/svg/pdf)")
	pf.StringVar(&f.metrics, "metrics", "", "输出统计指标文本，- 表示标准输出")
	pf.StringVar(&f.serve, "serve", "", "分析结束后在该地址发布图表，如 :8080")
	pf.BoolVar(&f.progress, "progress", false, "非终端时也显示进度条")

	static := &cobra.Command{
		Use:   "static",
		Short: "静力位移控制分析",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets, err := f.readTargets()
			if err != nil {
				return err
			}
			return f.run(cmd, types.Static, func(c *analyze.Controller) error {
				return opstool.RunStatic(c, f.node, f.dof, targets, f.maxStep)
			})
		},
	}
	static.Flags().StringVarP(&f.protocol, "protocol", "p", "", "加载制度文件")
	static.Flags().StringVarP(&f.targets, "targets", "t", "", "目标位移，逗号分隔")
	static.Flags().Float64Var(&f.maxStep, "max-step", 0, "最大子步长，0 时使用 initialStep 或前两个目标差值")
	static.Flags().IntVar(&f.node, "node", 0, "控制节点，0 表示端部节点")
	static.Flags().IntVar(&f.dof, "dof", 1, "控制自由度")
	static.MarkFlagsMutuallyExclusive("protocol", "targets")
	static.MarkFlagsOneRequired("protocol", "targets")

	transient := &cobra.Command{
		Use:   "transient",
		Short: "瞬态时程分析",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.dt <= 0 {
				return fmt.Errorf("时间步长必须为正: %g", f.dt)
			}
			return f.run(cmd, types.Transient, func(c *analyze.Controller) error {
				return opstool.RunTransient(c, f.dt, f.steps)
			})
		},
	}
	transient.Flags().Float64Var(&f.dt, "dt", 0.01, "时间步长")
	transient.Flags().IntVarP(&f.steps, "steps", "n", 100, "时间步数")

	root.AddCommand(static, transient)
	return root
}

func (f *flags) readTargets() ([]float64, error) {
	if f.protocol != "" {
		return load.ProtocolFile(f.protocol)
	}
	return load.ParseList(f.targets)
}

func (f *flags) loadOptions() (analyze.Options, error) {
	if f.options == "" {
		return analyze.DefaultOptions(), nil
	}
	r, err := os.Open(f.options)
	if err != nil {
		return analyze.Options{}, err
	}
	defer r.Close()
	opts, err := analyze.LoadOptions(r)
	if err != nil {
		return analyze.Options{}, fmt.Errorf("%s: %w", f.options, err)
	}
	return opts, nil
}

func (f *flags) loadParams() (model.Params, error) {
	if f.params == "" {
		return model.DefaultParams(), nil
	}
	r, err := os.Open(f.params)
	if err != nil {
		return model.Params{}, err
	}
	defer r.Close()
	p, err := model.LoadParams(r)
	if err != nil {
		return model.Params{}, fmt.Errorf("%s: %w", f.params, err)
	}
	return p, nil
}

// run 创建模型与控制器，执行分析并输出结果
func (f *flags) run(cmd *cobra.Command, mode types.Mode, analyzeFn func(*analyze.Controller) error) error {
	opts, err := f.loadOptions()
	if err != nil {
		return err
	}
	params, err := f.loadParams()
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if opts.DebugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	m, err := model.New(params, mode)
	if err != nil {
		return err
	}
	m.SetLogger(logger)
	if f.node == 0 {
		f.node = params.Springs
	}

	reg := prometheus.NewRegistry()
	rec := &report.Record{}
	observers := []types.Observer{
		report.NewLogger(logger, opts.PrintPer, opts.DebugMode),
		report.NewProgress(cmd.ErrOrStderr(), mode.String(), f.progress),
		report.NewMetrics(reg),
		rec,
	}
	c, err := analyze.New(m, mode, opts, observers...)
	if err != nil {
		return err
	}
	c.SetLogger(logger)

	runErr := analyzeFn(c)
	stats := c.Stats()
	logger.Info("统计",
		"steps", stats.Steps,
		"attempts", stats.Attempts,
		"bisections", stats.Bisections,
		"algo", m.Algorithm(),
		"elapsed", c.Elapsed(),
	)
	if err := f.write(cmd.OutOrStdout(), rec, reg); err != nil {
		logger.Error("输出结果失败", "error", err)
	}
	if f.serve != "" {
		charts := &report.Charts{Record: *rec}
		logger.Info("发布图表", "addr", f.serve)
		if err := http.ListenAndServe(f.serve, http.HandlerFunc(charts.Handler)); err != nil {
			logger.Error("发布图表失败", "error", err)
		}
	}
	return runErr
}

// write 按参数输出记录、图表与指标
func (f *flags) write(stdout io.Writer, rec *report.Record, reg *prometheus.Registry) error {
	outputs := []struct {
		name   string
		render func(io.Writer) error
	}{
		{f.jsonOut, rec.Render},
		{f.htmlOut, (&report.Charts{Record: *rec}).Render},
		{f.pngOut, (&report.Plot{Record: *rec, Format: format(f.pngOut)}).Render},
		{f.metrics, func(w io.Writer) error { return report.WriteText(w, reg) }},
	}
	for _, o := range outputs {
		if o.name == "" {
			continue
		}
		if o.name == "-" {
			if err := o.render(stdout); err != nil {
				return err
			}
			continue
		}
		if err := writeFile(o.name, o.render); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(name string, render func(io.Writer) error) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	return file.Close()
}

// format 由文件扩展名得到图片格式
func format(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
