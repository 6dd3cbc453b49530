package model

import (
	"errors"
	"fmt"
	"strings"

	"opstool/utils"
)

// ErrAlgorithm 算法设置错误
var ErrAlgorithm = errors.New("迭代算法设置无效")

// tangentKind 切线类型
type tangentKind int

const (
	tangentCurrent tangentKind = iota // 当前切线
	tangentInitial                    // 初始切线
	tangentSecant                     // 割线
)

// updateKind 拟牛顿更新方式
type updateKind int

const (
	updateNone updateKind = iota
	updateBroyden
	updateBFGS
)

// refresh 切线重建时机
const (
	refreshEveryIter = 1 // 每次迭代
	refreshStep      = 0 // 每个子步一次
)

// algorithm 解析后的迭代算法
type algorithm struct {
	name       string
	tangent    tangentKind // 迭代使用的切线
	first      tangentKind // 子步首次迭代的切线
	refresh    int         // 切线重建间隔（迭代次数），0 表示每个子步一次
	update     updateKind  // 拟牛顿更新
	maxDim     int         // 更新次数上限，达到后重建切线
	lineSearch string      // 线搜索类型，空表示不搜索
	lsTol      float64     // 线搜索容差
	lsIter     int         // 线搜索最大次数
	minEta     float64
	maxEta     float64
	fixedIter  int     // 固定迭代次数后直接接受，0 表示按判据
	factorOnce bool    // 整个分析只形成一次切线
	kFactor    float64 // 切线放大系数
}

var lineSearchTypes = []string{"Bisection", "Secant", "RegulaFalsi", "LinearInterpolated", "InitialInterpolated"}

// parseAlgorithm 解析算法名称与参数
func parseAlgorithm(name string, raw ...any) (algorithm, error) {
	args := utils.FromAnySlice(raw)
	a := algorithm{
		name:    name,
		refresh: refreshEveryIter,
		kFactor: 1,
	}
	var flags, withValue []string
	switch name {
	case "Linear":
		flags = []string{"-initial", "-secant", "-factorOnce"}
		a.fixedIter = 1
		a.tangent = tangentFlag(args, tangentCurrent)
		a.first = a.tangent
		a.factorOnce = args.Has("-factorOnce")
	case "Newton":
		flags = []string{"-initial", "-initialThenCurrent", "-secant"}
		a.tangent = tangentFlag(args, tangentCurrent)
		a.first = a.tangent
		if args.Has("-initialThenCurrent") {
			a.tangent = tangentCurrent
			a.first = tangentInitial
		}
	case "NewtonLineSearch":
		withValue = []string{"-type", "-tol", "-maxIter", "-minEta", "-maxEta"}
		a.lineSearch = "InitialInterpolated"
		if v, ok := args.Value("-type"); ok {
			a.lineSearch = ""
			for _, t := range lineSearchTypes {
				if strings.EqualFold(t, v) {
					a.lineSearch = t
				}
			}
			if a.lineSearch == "" {
				return a, fmt.Errorf("%w: 未知线搜索类型 %s", ErrAlgorithm, v)
			}
		}
		var err error
		if a.lsTol, err = args.Float("-tol", 0.8); err != nil {
			return a, fmt.Errorf("%w: %v", ErrAlgorithm, err)
		}
		if a.lsIter, err = args.Int("-maxIter", 10); err != nil {
			return a, fmt.Errorf("%w: %v", ErrAlgorithm, err)
		}
		if a.minEta, err = args.Float("-minEta", 0.1); err != nil {
			return a, fmt.Errorf("%w: %v", ErrAlgorithm, err)
		}
		if a.maxEta, err = args.Float("-maxEta", 10); err != nil {
			return a, fmt.Errorf("%w: %v", ErrAlgorithm, err)
		}
		if a.lsTol <= 0 || a.lsIter <= 0 || a.minEta <= 0 || a.maxEta < a.minEta {
			return a, fmt.Errorf("%w: 线搜索参数 tol=%g maxIter=%d eta=[%g, %g]", ErrAlgorithm, a.lsTol, a.lsIter, a.minEta, a.maxEta)
		}
	case "ModifiedNewton":
		flags = []string{"-initial", "-secant"}
		a.tangent = tangentFlag(args, tangentCurrent)
		a.first = a.tangent
		a.refresh = refreshStep
	case "KrylovNewton", "SecantNewton":
		withValue = []string{"-iterate", "-increment", "-maxDim"}
		a.refresh = refreshStep
		a.update = updateBroyden
		def := 3
		if name == "SecantNewton" {
			def = 10
		}
		var err error
		if a.tangent, err = tangentValue(args, "-iterate"); err != nil {
			return a, err
		}
		if a.first, err = tangentValue(args, "-increment"); err != nil {
			return a, err
		}
		if a.maxDim, err = positive(args, "-maxDim", def); err != nil {
			return a, err
		}
	case "BFGS", "Broyden":
		flags = []string{"-initial", "-secant"}
		withValue = []string{"-count"}
		a.refresh = refreshStep
		a.update = updateBroyden
		if name == "BFGS" {
			a.update = updateBFGS
		}
		a.tangent = tangentFlag(args, tangentCurrent)
		a.first = a.tangent
		var err error
		if a.maxDim, err = positive(args, "-count", 10); err != nil {
			return a, err
		}
	case "PeriodicNewton":
		flags = []string{"-initial", "-secant"}
		withValue = []string{"-maxDim"}
		a.tangent = tangentFlag(args, tangentCurrent)
		a.first = a.tangent
		var err error
		if a.refresh, err = positive(args, "-maxDim", 3); err != nil {
			return a, err
		}
	case "ExpressNewton":
		flags = []string{"-InitialTangent", "-currentTangent", "-factorOnce"}
		withValue = []string{"-iter", "-kMultiplier"}
		a.refresh = refreshStep
		if args.Has("-InitialTangent") {
			a.tangent, a.first = tangentInitial, tangentInitial
		}
		a.factorOnce = args.Has("-factorOnce")
		var err error
		if a.fixedIter, err = positive(args, "-iter", 2); err != nil {
			return a, err
		}
		if a.kFactor, err = args.Float("-kMultiplier", 1); err != nil {
			return a, fmt.Errorf("%w: %v", ErrAlgorithm, err)
		}
		if a.kFactor <= 0 {
			return a, fmt.Errorf("%w: -kMultiplier 必须为正数", ErrAlgorithm)
		}
	default:
		return a, fmt.Errorf("%w: 未知算法 %s", ErrAlgorithm, name)
	}
	if unknown := args.Unknown(flags, withValue); len(unknown) > 0 {
		return a, fmt.Errorf("%w: %s 不支持参数 %v", ErrAlgorithm, name, unknown)
	}
	return a, nil
}

// positive 解析正整数选项
func positive(args utils.Args, flag string, def int) (int, error) {
	v, err := args.Int(flag, def)
	if err != nil {
		return def, fmt.Errorf("%w: %v", ErrAlgorithm, err)
	}
	if v <= 0 {
		return def, fmt.Errorf("%w: %s 必须为正整数, 得到 %d", ErrAlgorithm, flag, v)
	}
	return v, nil
}

// tangentFlag 解析 -initial / -secant
func tangentFlag(args utils.Args, def tangentKind) tangentKind {
	switch {
	case args.Has("-initial"):
		return tangentInitial
	case args.Has("-secant"):
		return tangentSecant
	}
	return def
}

// tangentValue 解析 current / initial / noTangent 取值
func tangentValue(args utils.Args, flag string) (tangentKind, error) {
	v, ok := args.Value(flag)
	if !ok {
		return tangentCurrent, nil
	}
	switch strings.ToLower(v) {
	case "current", "notangent":
		return tangentCurrent, nil
	case "initial":
		return tangentInitial, nil
	}
	return tangentCurrent, fmt.Errorf("%w: %s 的取值无效 %s", ErrAlgorithm, flag, v)
}

// String 算法描述
func (a algorithm) String() string { return a.name }
