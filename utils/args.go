package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Args 算法参数列表（字符串形式）
type Args []string

// FromAnySlice 将 []any 转换为 Args 类型
// any 只能是基础类型，不考虑结构体的解析
func FromAnySlice(slice []any) Args {
	if slice == nil {
		return Args{}
	}
	result := make(Args, len(slice))
	for i, v := range slice {
		result[i] = anyToString(v)
	}
	return result
}

// anyToString 将任意基础类型转换为字符串
func anyToString(v any) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// String 以空格连接参数
func (args Args) String() string { return strings.Join(args, " ") }

// index 查找选项位置（忽略大小写）
func (args Args) index(flag string) int {
	for i, a := range args {
		if strings.EqualFold(a, flag) {
			return i
		}
	}
	return -1
}

// Has 是否包含选项
func (args Args) Has(flag string) bool { return args.index(flag) >= 0 }

// Value 获取选项后紧跟的值
func (args Args) Value(flag string) (string, bool) {
	i := args.index(flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

// Int 获取整数选项值
func (args Args) Int(flag string, def int) (int, error) {
	s, ok := args.Value(flag)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("选项 %s 的值无效 %q: %w", flag, s, err)
	}
	return v, nil
}

// Float 获取浮点选项值
func (args Args) Float(flag string, def float64) (float64, error) {
	s, ok := args.Value(flag)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def, fmt.Errorf("选项 %s 的值无效 %q: %w", flag, s, err)
	}
	return v, nil
}

// Unknown 返回不在允许列表中的选项（以 '-' 开头的项），
// withValue 中的选项会跳过其后紧跟的值。
func (args Args) Unknown(flags []string, withValue []string) []string {
	var unknown []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case containsFold(withValue, a):
			i++
		case containsFold(flags, a):
		default:
			unknown = append(unknown, a)
		}
	}
	return unknown
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
