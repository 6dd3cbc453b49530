package report

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	ot "opstool/types"
)

// Charts 曲线绘制
type Charts struct {
	Record
}

func lineOpts(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	}
}

// Render 格式化
func (c *Charts) Render(w io.Writer) error {
	steps := make([]int, len(c.Steps))
	sizes := make([]opts.LineData, len(c.Steps))
	path := make([]opts.LineData, len(c.Steps))
	attempts := make([]opts.BarData, len(c.Steps))
	for i, v := range c.Path() {
		s := c.Steps[i]
		steps[i] = s.Step
		sizes[i] = opts.LineData{Value: s.Size}
		path[i] = opts.LineData{Value: v}
		attempts[i] = opts.BarData{Value: len(s.Attempts)}
	}
	// 步长曲线
	lineS := charts.NewLine()
	lineS.SetGlobalOptions(lineOpts("子步步长", "各收敛子步的步长")...)
	lineS.SetXAxis(steps).
		AddSeries("步长", sizes, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	// 累计曲线
	lineP := charts.NewLine()
	lineP.SetGlobalOptions(lineOpts("加载路径", "收敛子步的累计位移或时间")...)
	lineP.SetXAxis(steps).
		AddSeries(c.Mode, path, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	// 求解次数
	bar := charts.NewBar()
	bar.SetGlobalOptions(lineOpts("求解次数", "每个子步内的求解调用次数")...)
	bar.SetXAxis(steps).AddSeries("次数", attempts)
	// 完成层级
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "完成层级",
			Subtitle: "按回退层级统计的子步数",
		}),
	)
	count := c.TierCount()
	items := make([]opts.PieData, 0, len(count))
	for _, t := range ot.Tiers() {
		if n := count[t.String()]; n > 0 {
			items = append(items, opts.PieData{Name: t.String(), Value: n})
		}
	}
	pie.AddSeries("层级", items,
		charts.WithLabelOpts(opts.Label{
			Show:      opts.Bool(true),
			Formatter: "{b}: {c}",
		}))
	// 构建界面
	page := components.NewPage()
	page.AddCharts(
		lineS,
		lineP,
		bar,
		pie,
	)
	return page.Render(w)
}

// Handler 发布到网页面
func (c *Charts) Handler(w http.ResponseWriter, _ *http.Request) {
	if err := c.Render(w); err != nil {
		slog.Error("输出图表失败", "error", err)
	}
}
