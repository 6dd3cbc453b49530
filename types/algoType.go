package types

import (
	"fmt"
	"slices"
)

// AlgoSpec 迭代算法定义
type AlgoSpec struct {
	Name string // 算法名称
	Args []any  // 固定参数
}

// algoTypeString 算法映射
var algoTypeString = map[int]AlgoSpec{}

// AlgoRegister 注册迭代算法代码
func AlgoRegister(code int, name string, args ...any) {
	if _, ok := algoTypeString[code]; ok {
		panic(fmt.Errorf("指定算法代码已经注册: %s:%d", name, code))
	}
	if code == UserAlgo {
		panic(fmt.Errorf("算法代码 %d 保留给用户自定义算法", code))
	}
	algoTypeString[code] = AlgoSpec{Name: name, Args: args}
}

// AlgoLookup 通过代码获取算法定义
func AlgoLookup(code int) (AlgoSpec, bool) {
	spec, ok := algoTypeString[code]
	if !ok {
		return AlgoSpec{}, false
	}
	return AlgoSpec{Name: spec.Name, Args: slices.Clone(spec.Args)}, true
}

// AlgoCodes 已注册代码（升序）
func AlgoCodes() []int {
	codes := make([]int, 0, len(algoTypeString))
	for code := range algoTypeString {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
