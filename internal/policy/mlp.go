// mlp.go

package policy

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
)

// ErrShapeMismatch 权重形状与网络结构不符
var ErrShapeMismatch = errors.New("policy weights shape mismatch")

// 动作维度：偏航、俯仰、开火
const outputs = 3

// MLP 观测 -> 隐层(ReLU) -> 动作(tanh) 的策略网络
type MLP struct {
	inputs int
	hidden int

	w0, b0 *tensor.Dense
	w1, b1 *tensor.Dense

	mutex sync.Mutex
}

// NewMLP 创建随机初始化的策略网络
func NewMLP(inputs, hidden int) *MLP {
	g := gorgonia.NewGraph()
	w0 := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(hidden, inputs), gorgonia.WithName("w0"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	b0 := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(hidden), gorgonia.WithName("b0"), gorgonia.WithInit(gorgonia.Zeroes()))
	w1 := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(outputs, hidden), gorgonia.WithName("w1"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	b1 := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(outputs), gorgonia.WithName("b1"), gorgonia.WithInit(gorgonia.Zeroes()))

	return &MLP{
		inputs: inputs,
		hidden: hidden,
		w0:     w0.Value().(*tensor.Dense),
		b0:     b0.Value().(*tensor.Dense),
		w1:     w1.Value().(*tensor.Dense),
		b1:     b1.Value().(*tensor.Dense),
	}
}

// LoadMLP 从权重文件创建策略网络
func LoadMLP(path string, inputs, hidden int) (*MLP, error) {
	m := NewMLP(inputs, hidden)
	if err := m.LoadFile(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Inputs 输入维度
func (m *MLP) Inputs() int { return m.inputs }

// Predict 前向计算，输入长度不足补零、过长截断
func (m *MLP) Predict(input []float64) ([]float64, error) {
	x := make([]float64, m.inputs)
	copy(x, input)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	g := gorgonia.NewGraph()
	xn := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(m.inputs), gorgonia.WithName("x"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(m.inputs), tensor.WithBacking(x))))
	w0 := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(m.hidden, m.inputs), gorgonia.WithName("w0"), gorgonia.WithValue(m.w0))
	b0 := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(m.hidden), gorgonia.WithName("b0"), gorgonia.WithValue(m.b0))
	w1 := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(outputs, m.hidden), gorgonia.WithName("w1"), gorgonia.WithValue(m.w1))
	b1 := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(outputs), gorgonia.WithName("b1"), gorgonia.WithValue(m.b1))

	h := gorgonia.Must(gorgonia.Rectify(gorgonia.Must(gorgonia.Add(gorgonia.Must(gorgonia.Mul(w0, xn)), b0))))
	out := gorgonia.Must(gorgonia.Tanh(gorgonia.Must(gorgonia.Add(gorgonia.Must(gorgonia.Mul(w1, h)), b1))))

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("策略网络前向计算失败: %w", err)
	}

	res := out.Value().Data().([]float64)
	return append([]float64(nil), res...), nil
}

// NextAction 实现 sim.ActionSource，计算失败时返回零动作
func (m *MLP) NextAction(obs []float32) sim.Action {
	input := make([]float64, len(obs))
	for i, v := range obs {
		input[i] = float64(v)
	}

	out, err := m.Predict(input)
	if err != nil {
		log.Warnf("策略网络不可用: %v", err)
		return sim.Action{}
	}
	return sim.ActionFromSlice(out)
}

// Save 以 gob 格式写出权重
func (m *MLP) Save(w io.Writer) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	enc := gob.NewEncoder(w)
	for _, t := range []*tensor.Dense{m.w0, m.b0, m.w1, m.b1} {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("写入权重失败: %w", err)
		}
	}
	return nil
}

// Load 读取 gob 格式的权重并校验形状
func (m *MLP) Load(r io.Reader) error {
	dec := gob.NewDecoder(r)
	loaded := make([]*tensor.Dense, 4)
	for i := range loaded {
		if err := dec.Decode(&loaded[i]); err != nil {
			return fmt.Errorf("读取权重失败: %w", err)
		}
	}

	want := []tensor.Shape{
		{m.hidden, m.inputs},
		{m.hidden},
		{outputs, m.hidden},
		{outputs},
	}
	for i, t := range loaded {
		if !t.Shape().Eq(want[i]) {
			return fmt.Errorf("%w: 第%d组权重形状 %v, 期望 %v", ErrShapeMismatch, i, t.Shape(), want[i])
		}
	}

	m.mutex.Lock()
	m.w0, m.b0, m.w1, m.b1 = loaded[0], loaded[1], loaded[2], loaded[3]
	m.mutex.Unlock()
	return nil
}

// SaveFile 写出权重文件
func (m *MLP) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建权重文件失败: %w", err)
	}
	defer f.Close()
	return m.Save(f)
}

// LoadFile 读取权重文件
func (m *MLP) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开权重文件失败: %w", err)
	}
	defer f.Close()
	return m.Load(f)
}
