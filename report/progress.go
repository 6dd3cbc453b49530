package report

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"opstool/types"
)

// Progress 终端进度条，总数取自第一次收敛时预告的子步总数
type Progress struct {
	w      io.Writer
	desc   string
	enable bool
	bar    *progressbar.ProgressBar
	failed bool
}

// NewProgress 创建进度条，w 不是终端时不输出，force 强制输出
func NewProgress(w io.Writer, desc string, force bool) *Progress {
	if w == nil {
		w = io.Discard
	}
	return &Progress{w: w, desc: desc, enable: force || IsTerminal(w)}
}

// IsTerminal 判断输出是否为终端
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newBar 按总数创建进度条，总数未知时为计数模式
func (p *Progress) newBar(total int) *progressbar.ProgressBar {
	n := total
	if n <= 0 {
		n = -1
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(p.desc),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.w)
		}),
	)
}

func (p *Progress) AttemptStart(types.Attempt)       {}
func (p *Progress) AttemptResult(types.Attempt, int) {}

func (p *Progress) StepDone(o types.Outcome) {
	if !p.enable {
		return
	}
	if p.bar == nil {
		p.bar = p.newBar(o.Total)
	}
	_ = p.bar.Set(o.Step)
}

func (p *Progress) StepFailed(o types.Outcome) {
	if !p.enable {
		return
	}
	p.failed = true
	if p.bar == nil {
		p.bar = p.newBar(o.Total)
	}
	p.bar.Describe(fmt.Sprintf("%s 第 %d 步失败", p.desc, o.Step))
	_ = p.bar.RenderBlank()
}

// Close 完成进度条，失败时保留当前位置
func (p *Progress) Close() error {
	if p.bar == nil {
		return nil
	}
	bar := p.bar
	p.bar = nil
	if p.failed {
		_, err := fmt.Fprintln(p.w)
		return err
	}
	return bar.Finish()
}
