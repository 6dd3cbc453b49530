package analyze

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"opstool/algo"
	"opstool/convtest"
	"opstool/types"
)

// 配置错误定义
var (
	ErrUnknownOption = errors.New("未知配置项")
	ErrInvalidOption = errors.New("配置项无效")
)

var validate = validator.New()

// Options 控制器配置，yaml 键名即可识别的配置项
type Options struct {
	TestType          types.TestType `yaml:"testType" json:"testType"`
	TestTol           float64        `yaml:"testTol" json:"testTol" validate:"gt=0"`
	TestIterTimes     int            `yaml:"testIterTimes" json:"testIterTimes" validate:"gt=0"`
	TestPrintFlag     int            `yaml:"testPrintFlag" json:"testPrintFlag" validate:"gte=0"`
	TryAddTestTimes   bool           `yaml:"tryAddTestTimes" json:"tryAddTestTimes"`
	NormTol           float64        `yaml:"normTol" json:"normTol" validate:"gt=0"`
	TestIterTimesMore []int          `yaml:"testIterTimesMore" json:"testIterTimesMore" validate:"dive,gt=0"`
	TryLooseTestTol   bool           `yaml:"tryLooseTestTol" json:"tryLooseTestTol"`
	LooseTestTolTo    float64        `yaml:"looseTestTolTo" json:"looseTestTolTo" validate:"gte=0"` // 0 表示 100 倍 testTol
	TryAlterAlgoTypes bool           `yaml:"tryAlterAlgoTypes" json:"tryAlterAlgoTypes"`
	AlgoTypes         []int          `yaml:"algoTypes" json:"algoTypes" validate:"min=1"`
	UserAlgoArgs      []any          `yaml:"UserAlgoArgs" json:"UserAlgoArgs"`
	InitialStep       float64        `yaml:"initialStep" json:"initialStep" validate:"gte=0"` // 0 表示未指定
	Relaxation        float64        `yaml:"relaxation" json:"relaxation" validate:"gt=0,lt=1"`
	MinStep           float64        `yaml:"minStep" json:"minStep" validate:"gt=0"`
	DebugMode         bool           `yaml:"debugMode" json:"debugMode"`
	PrintPer          int            `yaml:"printPer" json:"printPer" validate:"gte=0"`
}

// DefaultOptions 默认配置
func DefaultOptions() Options {
	return Options{
		TestType:          types.DefaultTestType,
		TestTol:           types.DefaultTestTol,
		TestIterTimes:     types.DefaultTestIter,
		NormTol:           types.DefaultNormTol,
		TestIterTimesMore: slices.Clone(types.DefaultIterMore),
		AlgoTypes:         slices.Clone(types.DefaultAlgoTypes),
		UserAlgoArgs:      []any{},
		Relaxation:        types.DefaultRelaxation,
		MinStep:           types.DefaultMinStep,
		PrintPer:          types.DefaultPrintPer,
	}
}

// OptionKeys 可识别的配置项
func OptionKeys() []string { return slices.Clone(optionKeys) }

var optionKeys = func() []string {
	t := reflect.TypeOf(Options{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		keys = append(keys, tag)
	}
	return keys
}()

// checkKeys 拒绝未知配置项
func checkKeys[V any](raw map[string]V) error {
	var unknown []string
	for key := range raw {
		if !slices.Contains(optionKeys, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(unknown, ", "))
	}
	return nil
}

// LoadOptions 从 YAML 读取配置，未出现的键保持默认值
func LoadOptions(r io.Reader) (Options, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Options{}, fmt.Errorf("读取配置失败: %w", err)
	}
	return decodeOptions(data)
}

// OptionsFromMap 通过键值表创建配置，用于以关键字参数方式传入
func OptionsFromMap(values map[string]any) (Options, error) {
	if err := checkKeys(values); err != nil {
		return Options{}, err
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return decodeOptions(data)
}

func decodeOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	raw := map[string]yaml.Node{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if err := checkKeys(raw); err != nil {
		return Options{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return opts, opts.Validate()
}

// Validate 检查配置
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if _, err := o.TestType.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if _, err := o.TestConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if _, err := algo.Choices(o.AlgoTypes, o.UserAlgoArgs); err != nil {
		return err
	}
	return nil
}

// TestConfig 初始收敛判据
func (o Options) TestConfig() (convtest.Config, error) {
	return convtest.New(o.TestType, o.TestTol, o.TestIterTimes, o.TestPrintFlag)
}

// LooseTol 放宽后的容差
func (o Options) LooseTol() float64 {
	if o.LooseTestTolTo > 0 {
		return o.LooseTestTolTo
	}
	return types.LooseTolFactor * o.TestTol
}
