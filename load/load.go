// Package load 读取静力加载制度文件。
//
// 文件由目标位移序列组成，数值之间以空白或逗号分隔，
// 支持 # 与 // 行注释。以 .value 定义命名值，之后以 %name 引用：
//
//	.value peak 0.05
//	0, %peak, -%peak   # 第一圈
//	0.1 -0.1 0
package load

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// 常量定义
const (
	tokenValue       = ".value" // 值设置命令
	tokenCommentHash = "#"      // # 注释
	tokenCommentLine = "//"     // // 行注释
	tokenVar         = "%"      // 变量引用前缀
)

// ErrSyntax 加载制度格式错误
var ErrSyntax = errors.New("加载制度格式错误")

// Protocol 读取目标位移序列
func Protocol(r io.Reader) ([]float64, error) {
	scanner := bufio.NewScanner(r)
	values := map[string]float64{}
	var targets []float64
	for line := 1; scanner.Scan(); line++ {
		text := stripComment(scanner.Text())
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})
		if len(fields) == 0 {
			continue
		}
		if fields[0] == tokenValue {
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: 第 %d 行: .value 需要名称和数值", ErrSyntax, line)
			}
			v, err := number(fields[2], values)
			if err != nil {
				return nil, fmt.Errorf("%w: 第 %d 行: %v", ErrSyntax, line, err)
			}
			values[fields[1]] = v
			continue
		}
		for _, f := range fields {
			v, err := number(f, values)
			if err != nil {
				return nil, fmt.Errorf("%w: 第 %d 行: %v", ErrSyntax, line, err)
			}
			targets = append(targets, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取加载制度时出错: %w", err)
	}
	return targets, nil
}

// ProtocolFile 从文件读取目标位移序列
func ProtocolFile(name string) ([]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	targets, err := Protocol(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return targets, nil
}

// ParseList 解析逗号分隔的目标位移，用于命令行
func ParseList(s string) ([]float64, error) {
	return Protocol(strings.NewReader(s))
}

func stripComment(s string) string {
	if i := strings.Index(s, tokenCommentHash); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, tokenCommentLine); i >= 0 {
		s = s[:i]
	}
	return s
}

// number 解析数值或变量引用，变量前可带负号
func number(token string, values map[string]float64) (float64, error) {
	sign := 1.0
	name := token
	if strings.HasPrefix(name, "-"+tokenVar) {
		sign, name = -1, name[1:]
	}
	if strings.HasPrefix(name, tokenVar) {
		v, ok := values[name[1:]]
		if !ok {
			return 0, fmt.Errorf("未定义的值 '%s'", name[1:])
		}
		return sign * v, nil
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("无效数值 '%s'", token)
	}
	return v, nil
}
