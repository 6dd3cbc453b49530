package types

import "fmt"

// TestType 收敛判据类型
type TestType uint

// 收敛判据常量定义
const (
	NormUnbalance             TestType = iota // 不平衡力范数
	NormDispIncr                              // 位移增量范数
	EnergyIncr                                // 能量增量
	RelativeNormUnbalance                     // 相对不平衡力范数
	RelativeNormDispIncr                      // 相对位移增量范数
	RelativeEnergyIncr                        // 相对能量增量
	RelativeTotalNormDispIncr                 // 相对累计位移增量范数
	FixedNumIter                              // 固定迭代次数
)

var testTypeString = [...]string{
	NormUnbalance:             "NormUnbalance",
	NormDispIncr:              "NormDispIncr",
	EnergyIncr:                "EnergyIncr",
	RelativeNormUnbalance:     "RelativeNormUnbalance",
	RelativeNormDispIncr:      "RelativeNormDispIncr",
	RelativeEnergyIncr:        "RelativeEnergyIncr",
	RelativeTotalNormDispIncr: "RelativeTotalNormDispIncr",
	FixedNumIter:              "FixedNumIter",
}

// String 判据名称
func (t TestType) String() string {
	if int(t) < len(testTypeString) {
		return testTypeString[t]
	}
	return fmt.Sprintf("TestType(%d)", uint(t))
}

// IsRelative 是否为相对判据
func (t TestType) IsRelative() bool {
	switch t {
	case RelativeNormUnbalance, RelativeNormDispIncr, RelativeEnergyIncr, RelativeTotalNormDispIncr:
		return true
	}
	return false
}

// ParseTestType 通过名称获取判据
func ParseTestType(name string) (TestType, error) {
	for i, s := range testTypeString {
		if s == name {
			return TestType(i), nil
		}
	}
	return 0, fmt.Errorf("未知收敛判据: %q", name)
}

// MarshalText 实现 encoding.TextMarshaler
func (t TestType) MarshalText() ([]byte, error) {
	if int(t) >= len(testTypeString) {
		return nil, fmt.Errorf("未知收敛判据: %d", uint(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (t *TestType) UnmarshalText(text []byte) error {
	v, err := ParseTestType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
