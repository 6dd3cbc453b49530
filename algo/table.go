package algo

import "opstool/types"

// 内置迭代算法表（代码 -> 名称与固定参数）
func init() {
	// 线性
	types.AlgoRegister(0, "Linear")
	types.AlgoRegister(1, "Linear", "-initial")
	types.AlgoRegister(2, "Linear", "-secant")
	types.AlgoRegister(3, "Linear", "-factorOnce")
	types.AlgoRegister(4, "Linear", "-initial", "-factorOnce")
	types.AlgoRegister(5, "Linear", "-secant", "-factorOnce")
	// 牛顿
	types.AlgoRegister(10, "Newton")
	types.AlgoRegister(11, "Newton", "-initial")
	types.AlgoRegister(12, "Newton", "-initialThenCurrent")
	types.AlgoRegister(13, "Newton", "-secant")
	// 线搜索牛顿
	types.AlgoRegister(20, "NewtonLineSearch")
	types.AlgoRegister(21, "NewtonLineSearch", "-type", "Bisection")
	types.AlgoRegister(22, "NewtonLineSearch", "-type", "Secant")
	types.AlgoRegister(23, "NewtonLineSearch", "-type", "RegulaFalsi")
	types.AlgoRegister(24, "NewtonLineSearch", "-type", "LinearInterpolated")
	types.AlgoRegister(25, "NewtonLineSearch", "-type", "InitialInterpolated")
	types.AlgoRegister(26, "NewtonLineSearch", "-type", "Bisection", "-tol", 0.5)
	// 修正牛顿
	types.AlgoRegister(30, "ModifiedNewton")
	types.AlgoRegister(31, "ModifiedNewton", "-initial")
	types.AlgoRegister(32, "ModifiedNewton", "-secant")
	// Krylov 子空间加速牛顿
	types.AlgoRegister(40, "KrylovNewton")
	types.AlgoRegister(41, "KrylovNewton", "-iterate", "initial")
	types.AlgoRegister(42, "KrylovNewton", "-increment", "initial")
	types.AlgoRegister(43, "KrylovNewton", "-iterate", "initial", "-increment", "initial")
	types.AlgoRegister(44, "KrylovNewton", "-maxDim", 10)
	types.AlgoRegister(45, "KrylovNewton", "-iterate", "initial", "-increment", "initial", "-maxDim", 10)
	// 割线牛顿
	types.AlgoRegister(50, "SecantNewton")
	types.AlgoRegister(51, "SecantNewton", "-iterate", "initial")
	types.AlgoRegister(52, "SecantNewton", "-increment", "initial")
	types.AlgoRegister(53, "SecantNewton", "-iterate", "initial", "-increment", "initial")
	// 拟牛顿
	types.AlgoRegister(60, "BFGS")
	types.AlgoRegister(61, "BFGS", "-initial")
	types.AlgoRegister(62, "BFGS", "-secant")
	types.AlgoRegister(63, "BFGS", "-count", 10)
	types.AlgoRegister(70, "Broyden")
	types.AlgoRegister(71, "Broyden", "-initial")
	types.AlgoRegister(72, "Broyden", "-secant")
	types.AlgoRegister(73, "Broyden", "-count", 10)
	// 周期刷新牛顿
	types.AlgoRegister(80, "PeriodicNewton")
	types.AlgoRegister(81, "PeriodicNewton", "-maxDim", 10)
	// 固定次数牛顿
	types.AlgoRegister(90, "ExpressNewton")
	types.AlgoRegister(91, "ExpressNewton", "-InitialTangent")
	types.AlgoRegister(92, "ExpressNewton", "-currentTangent")
	types.AlgoRegister(93, "ExpressNewton", "-factorOnce")
}
