package report

import (
	"encoding/json"
	"io"

	"opstool/types"
)

// AttemptRecord 一次求解尝试
type AttemptRecord struct {
	Tier     string  `json:"tier"`
	Size     float64 `json:"size"`
	Algo     int     `json:"algo"`
	TestTol  float64 `json:"testTol"`
	TestIter int     `json:"testIter"`
	Code     int     `json:"code"`
}

// StepRecord 一个子步
type StepRecord struct {
	Step     int             `json:"step"`
	Size     float64         `json:"size"`
	Code     int             `json:"code"`
	Tier     string          `json:"tier,omitempty"` // 完成子步的层级
	Algo     int             `json:"algo"`
	Elapsed  float64         `json:"elapsed"` // 秒
	Attempts []AttemptRecord `json:"attempts"`
}

// Record 记录历史状态
type Record struct {
	Mode    string       `json:"mode"`
	Total   int          `json:"total"`
	Steps   []StepRecord `json:"steps"`
	Failure *StepRecord  `json:"failure,omitempty"`

	pending []AttemptRecord
}

func (r *Record) AttemptStart(types.Attempt) {}

func (r *Record) AttemptResult(a types.Attempt, code int) {
	r.pending = append(r.pending, AttemptRecord{
		Tier:     a.Tier.String(),
		Size:     a.Size,
		Algo:     a.Algo,
		TestTol:  a.TestTol,
		TestIter: a.TestIter,
		Code:     code,
	})
}

func (r *Record) StepDone(o types.Outcome) {
	step := r.take(o)
	if n := len(step.Attempts); n > 0 {
		step.Tier = step.Attempts[n-1].Tier
	}
	r.Steps = append(r.Steps, step)
}

func (r *Record) StepFailed(o types.Outcome) {
	step := r.take(o)
	r.Failure = &step
}

func (r *Record) Close() error { return nil }

// take 取出当前子步的尝试记录
func (r *Record) take(o types.Outcome) StepRecord {
	r.Mode = o.Mode.String()
	r.Total = o.Total
	step := StepRecord{
		Step:     o.Step,
		Size:     o.Size,
		Code:     o.Code,
		Algo:     o.Algo,
		Elapsed:  o.Elapsed.Seconds(),
		Attempts: r.pending,
	}
	r.pending = nil
	return step
}

// Sizes 已收敛子步的步长
func (r *Record) Sizes() []float64 {
	sizes := make([]float64, len(r.Steps))
	for i, s := range r.Steps {
		sizes[i] = s.Size
	}
	return sizes
}

// Path 已收敛子步的累计值（静力为位移，瞬态为时间）
func (r *Record) Path() []float64 {
	path := make([]float64, len(r.Steps))
	sum := 0.0
	for i, s := range r.Steps {
		sum += s.Size
		path[i] = sum
	}
	return path
}

// TierCount 按完成层级统计子步数
func (r *Record) TierCount() map[string]int {
	count := map[string]int{}
	for _, s := range r.Steps {
		count[s.Tier]++
	}
	return count
}

// Render 格式和输出内容
func (r *Record) Render(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
