// Package model 提供一个实现 types.Solver 的参考非线性求解器：
// 一端固定的串联非线性弹簧链，静力采用位移控制，瞬态采用 Newmark 平均加速度法。
package model

import (
	"fmt"
	"io"
	"math"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Params 模型参数
// 第 i 根弹簧（下标从0）的屈服力 Fy_i = Fy·(1 - Taper·i/Springs)，
// 弹簧力 f(δ) = Fy_i·tanh(K·δ/Fy_i) + Alpha·K·δ
type Params struct {
	Springs int     `yaml:"springs" json:"springs" validate:"gt=0,lte=1000"` // 弹簧数，节点 1..Springs
	K       float64 `yaml:"k" json:"k" validate:"gt=0"`                        // 初始刚度
	Fy      float64 `yaml:"fy" json:"fy" validate:"gt=0"`                      // 根部弹簧屈服力
	Taper   float64 `yaml:"taper" json:"taper" validate:"gte=0,lt=1"`          // 屈服力沿链递减比例
	Alpha   float64 `yaml:"alpha" json:"alpha" validate:"gte=0"`               // 屈服后刚度比
	Mass    float64 `yaml:"mass" json:"mass" validate:"gt=0"`                  // 节点质量
	Damping float64 `yaml:"damping" json:"damping" validate:"gte=0"`           // 节点阻尼系数
	Amp     float64 `yaml:"amp" json:"amp"`                                    // 瞬态端部荷载幅值
	Omega   float64 `yaml:"omega" json:"omega" validate:"gte=0"`               // 瞬态荷载圆频率
}

// DefaultParams 默认参数
func DefaultParams() Params {
	return Params{
		Springs: 3,
		K:       100,
		Fy:      10,
		Taper:   0.5,
		Alpha:   0.02,
		Mass:    1,
		Damping: 0.5,
		Amp:     15,
		Omega:   2,
	}
}

// LoadParams 从 YAML 读取参数，未出现的键保持默认值
func LoadParams(r io.Reader) (Params, error) {
	p := DefaultParams()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Params{}, fmt.Errorf("读取模型参数失败: %w", err)
	}
	return p, p.Validate()
}

// Validate 检查参数
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("模型参数无效: %w", err)
	}
	if math.IsInf(p.Amp, 0) || math.IsNaN(p.Amp) {
		return fmt.Errorf("模型参数无效: amp=%v", p.Amp)
	}
	return nil
}

// yield 第 i 根弹簧的屈服力
func (p Params) yield(i int) float64 {
	return p.Fy * (1 - p.Taper*float64(i)/float64(p.Springs))
}

// force 第 i 根弹簧的内力
func (p Params) force(i int, d float64) float64 {
	fy := p.yield(i)
	return fy*math.Tanh(p.K*d/fy) + p.Alpha*p.K*d
}

// stiffness 第 i 根弹簧的切线刚度
func (p Params) stiffness(i int, d float64) float64 {
	t := math.Tanh(p.K * d / p.yield(i))
	return p.K*(1-t*t) + p.Alpha*p.K
}

// initial 初始刚度
func (p Params) initial() float64 { return p.K * (1 + p.Alpha) }

// secant 第 i 根弹簧的割线刚度
func (p Params) secant(i int, d float64) float64 {
	if math.Abs(d) < 1e-14 {
		return p.initial()
	}
	return p.force(i, d) / d
}
