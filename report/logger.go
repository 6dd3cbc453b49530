package report

import (
	"log/slog"
	"time"

	"opstool/types"
)

// Logger 以结构化日志输出分析进度
type Logger struct {
	log      *slog.Logger
	printPer int  // 每隔多少个子步输出一次进度，0 表示不输出
	debug    bool // 输出每一次求解尝试
}

// NewLogger 创建日志观察者，l 为空时使用 slog.Default()
func NewLogger(l *slog.Logger, printPer int, debug bool) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{log: l, printPer: printPer, debug: debug}
}

func (l *Logger) AttemptStart(a types.Attempt) {
	if !l.debug {
		return
	}
	l.log.Info("尝试求解",
		"step", a.Step,
		"tier", a.Tier.String(),
		"size", a.Size,
		"algo", a.Algo,
		"test", a.TestType.String(),
		"tol", a.TestTol,
		"iter", a.TestIter,
	)
}

func (l *Logger) AttemptResult(a types.Attempt, code int) {
	if !l.debug || code >= 0 {
		return
	}
	l.log.Info("求解未收敛", "step", a.Step, "tier", a.Tier.String(), "size", a.Size, "code", code)
}

func (l *Logger) StepDone(o types.Outcome) {
	if l.printPer <= 0 {
		return
	}
	if o.Step%l.printPer != 0 && o.Step != o.Total {
		return
	}
	args := []any{"mode", o.Mode.String(), "step", o.Step}
	if o.Total > 0 {
		args = append(args, "total", o.Total)
	}
	args = append(args, "attempts", o.Attempts, "algo", o.Algo, "elapsed", o.Elapsed.Round(time.Millisecond))
	l.log.Info("分析进度", args...)
	if o.Total > 0 && o.Step == o.Total {
		l.log.Info("分析完成", "mode", o.Mode.String(), "steps", o.Total, "elapsed", o.Elapsed.Round(time.Millisecond))
	}
}

func (l *Logger) StepFailed(o types.Outcome) {
	l.log.Error("分析失败",
		"mode", o.Mode.String(),
		"step", o.Step,
		"size", o.Size,
		"attempts", o.Attempts,
		"elapsed", o.Elapsed.Round(time.Millisecond),
	)
}

func (l *Logger) Close() error { return nil }
