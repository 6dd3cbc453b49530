package types

// 求解结果代码
const (
	Success = 0  // 收敛
	Failure = -1 // 未收敛
)

// 分步常量定义
const (
	Epsilon        = 1e-12 // 忽略的最小跨度
	UserAlgo       = 100   // 用户自定义迭代算法代码
	LooseTolFactor = 100.0 // 默认放宽容差倍数
)

// 默认参数常量定义
var (
	DefaultTestType   = EnergyIncr // 收敛判据
	DefaultTestTol    = 1e-10      // 收敛容差
	DefaultTestIter   = 10         // 最大迭代次数
	DefaultNormTol    = 1e3        // 追加迭代的范数门限
	DefaultIterMore   = []int{50}  // 追加迭代次数列表
	DefaultRelaxation = 0.5        // 二分缩减系数
	DefaultMinStep    = 1e-6       // 最小步长
	DefaultPrintPer   = 10         // 进度输出间隔
	// DefaultAlgoTypes 候选算法，首个为默认算法
	DefaultAlgoTypes = []int{40, 10, 20, 30, 50, 60, 70, 90}
)
