// Package algo 将算法代码翻译为求解器的迭代算法设置。
package algo

import (
	"errors"
	"fmt"
	"slices"

	"opstool/types"
	"opstool/utils"
)

// 错误定义
var (
	ErrUnknownAlgo  = errors.New("未知迭代算法代码")
	ErrUserAlgoArgs = errors.New("用户自定义算法缺少参数")
)

// Choice 迭代算法选择
type Choice struct {
	Code int   // 算法代码
	Args []any // 用户自定义算法参数，仅 Code == types.UserAlgo 时使用
}

// String 输出算法描述
func (c Choice) String() string {
	name, args, err := Resolve(c)
	if err != nil {
		return fmt.Sprintf("%d(?)", c.Code)
	}
	if len(args) == 0 {
		return fmt.Sprintf("%d:%s", c.Code, name)
	}
	return fmt.Sprintf("%d:%s %s", c.Code, name, utils.FromAnySlice(args))
}

// Resolve 解析算法名称与参数
func Resolve(c Choice) (name string, args []any, err error) {
	if c.Code == types.UserAlgo {
		if len(c.Args) == 0 {
			return "", nil, ErrUserAlgoArgs
		}
		name, ok := c.Args[0].(string)
		if !ok || name == "" {
			return "", nil, fmt.Errorf("%w: 首个参数必须为算法名称, 得到 %v", ErrUserAlgoArgs, c.Args[0])
		}
		return name, slices.Clone(c.Args[1:]), nil
	}
	spec, ok := types.AlgoLookup(c.Code)
	if !ok {
		return "", nil, fmt.Errorf("%w: %d", ErrUnknownAlgo, c.Code)
	}
	return spec.Name, spec.Args, nil
}

// Apply 将算法设置到求解器
func Apply(s types.Solver, c Choice) error {
	name, args, err := Resolve(c)
	if err != nil {
		return err
	}
	if err := s.ConfigureAlgorithm(name, args...); err != nil {
		return fmt.Errorf("设置算法 %s 失败: %w", c, err)
	}
	return nil
}

// Choices 通过代码列表构建候选算法，userArgs 只传给自定义代码
func Choices(codes []int, userArgs []any) ([]Choice, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: 候选算法列表为空", ErrUnknownAlgo)
	}
	list := make([]Choice, len(codes))
	for i, code := range codes {
		list[i] = Choice{Code: code}
		if code == types.UserAlgo {
			list[i].Args = slices.Clone(userArgs)
		}
		if _, _, err := Resolve(list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}
