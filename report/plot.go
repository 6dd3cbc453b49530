package report

import (
	"errors"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot 输出步长历史图片
type Plot struct {
	Record
	Width, Height vg.Length // 图片尺寸，0 时为 16cm x 10cm
	Format        string    // png, svg, pdf 等，空时为 png
}

// Render 绘制已收敛子步的步长与累计值
func (p *Plot) Render(w io.Writer) error {
	if len(p.Steps) == 0 {
		return errors.New("没有可绘制的子步")
	}
	width, height, format := p.Width, p.Height, p.Format
	if width <= 0 {
		width = 16 * vg.Centimeter
	}
	if height <= 0 {
		height = 10 * vg.Centimeter
	}
	if format == "" {
		format = "png"
	}
	sizes := make(plotter.XYs, len(p.Steps))
	path := make(plotter.XYs, len(p.Steps))
	for i, v := range p.Path() {
		x := float64(p.Steps[i].Step)
		sizes[i] = plotter.XY{X: x, Y: p.Steps[i].Size}
		path[i] = plotter.XY{X: x, Y: v}
	}

	pl := plot.New()
	pl.Title.Text = "SmartAnalyze " + p.Mode
	pl.X.Label.Text = "step"
	pl.Y.Label.Text = "value"
	pl.Legend.Top = true
	pl.Add(plotter.NewGrid())

	lineS, pointS, err := plotter.NewLinePoints(sizes)
	if err != nil {
		return err
	}
	lineP, err := plotter.NewLine(path)
	if err != nil {
		return err
	}
	lineP.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	pl.Add(lineS, pointS, lineP)
	pl.Legend.Add("size", lineS, pointS)
	pl.Legend.Add("path", lineP)

	wt, err := pl.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
