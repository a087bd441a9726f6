package detector

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// ── 孤立森林 ────────────────────────────────────────────────
//
// 职责：在一批特征向量上训练随机划分树集成，并给任意向量打出 (0,1] 的异常分。
//
// 设计决策：
//   - 森林是一次扫描内的临时值：每次 Fit 丢弃旧树整体重建，不跨扫描复用
//   - 随机源通过 RandSource 注入，生产使用时间种子，测试使用固定种子
//   - c(n) 使用 γ 近似值而非调和数精确值，保持与历史评分的数值一致
// ─────────────────────────────────────────────────────────────

const (
	DefaultNumTrees   = 100
	DefaultMaxSamples = 256

	// eulerGamma Euler–Mascheroni 常数（近似值）
	eulerGamma = 0.5772156649

	// neutralScore 归一化因子为 0 时返回的中性分
	neutralScore = 0.5
)

// ErrModelNotFitted 未训练即打分
var ErrModelNotFitted = errors.New("孤立森林尚未训练")

// RandSource 随机源抽象（*rand.Rand 天然满足）
type RandSource interface {
	Intn(n int) int
	Float64() float64
	Perm(n int) []int
}

// NewRandSource 创建以当前时间为种子的随机源
func NewRandSource() RandSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewSeededRandSource 创建固定种子随机源（用于测试与复现）
func NewSeededRandSource(seed int64) RandSource {
	return rand.New(rand.NewSource(seed))
}

// node 划分树节点：无子节点时为外部节点（叶子）
type node struct {
	size    int // 外部节点：落入该叶子的样本数
	feature int
	split   float64
	left    *node
	right   *node
}

func (n *node) external() bool { return n.left == nil && n.right == nil }

// Forest 孤立森林
type Forest struct {
	numTrees   int
	maxSamples int
	rng        RandSource

	trees      []*node
	sampleSize int
	maxDepth   int
}

// NewForest 创建孤立森林；numTrees/maxSamples <= 0 时使用默认值
func NewForest(numTrees, maxSamples int, rng RandSource) *Forest {
	if numTrees <= 0 {
		numTrees = DefaultNumTrees
	}
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if rng == nil {
		rng = NewRandSource()
	}
	return &Forest{numTrees: numTrees, maxSamples: maxSamples, rng: rng}
}

// SampleSize 当前训练使用的子样本大小
func (f *Forest) SampleSize() int { return f.sampleSize }

// MaxDepth 当前训练使用的最大树深
func (f *Forest) MaxDepth() int { return f.maxDepth }

// NumTrees 当前已构建的树数量
func (f *Forest) NumTrees() int { return len(f.trees) }

// Fit 在给定批次上（重新）训练森林
// 空批次不做任何事，调用方需自行短路
func (f *Forest) Fit(vectors []Vector) {
	f.trees = nil
	if len(vectors) == 0 {
		f.sampleSize = 0
		f.maxDepth = 0
		return
	}

	f.sampleSize = f.maxSamples
	if len(vectors) < f.sampleSize {
		f.sampleSize = len(vectors)
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))

	f.trees = make([]*node, 0, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		f.trees = append(f.trees, f.buildTree(f.subsample(vectors), 0))
	}
}

// subsample 无放回抽取 sampleSize 个样本
func (f *Forest) subsample(vectors []Vector) []Vector {
	idx := f.rng.Perm(len(vectors))
	sample := make([]Vector, f.sampleSize)
	for i := 0; i < f.sampleSize; i++ {
		sample[i] = vectors[idx[i]]
	}
	return sample
}

// buildTree 递归构建划分树
func (f *Forest) buildTree(rows []Vector, depth int) *node {
	if depth >= f.maxDepth || len(rows) <= 1 {
		return &node{size: len(rows)}
	}

	feature := f.rng.Intn(NumFeatures)
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows[1:] {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	if lo == hi {
		return &node{size: len(rows)}
	}

	// 划分值严格落在 (lo, hi) 内
	split := lo + f.rng.Float64()*(hi-lo)
	if split <= lo || split >= hi {
		split = lo + (hi-lo)/2
	}

	left := make([]Vector, 0, len(rows)/2)
	right := make([]Vector, 0, len(rows)/2)
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	return &node{
		size:    len(rows),
		feature: feature,
		split:   split,
		left:    f.buildTree(left, depth+1),
		right:   f.buildTree(right, depth+1),
	}
}

// Score 计算单个向量的异常分，范围 (0,1]
func (f *Forest) Score(v Vector) (float64, error) {
	if len(f.trees) == 0 {
		return 0, ErrModelNotFitted
	}

	total := 0.0
	for _, t := range f.trees {
		total += pathLength(t, v)
	}
	avg := total / float64(len(f.trees))

	norm := AveragePathLength(f.sampleSize)
	if norm == 0 {
		return neutralScore, nil
	}
	return math.Pow(2, -avg/norm), nil
}

// pathLength 从根走到外部节点，叶子处加上 c(size) 修正
func pathLength(n *node, v Vector) float64 {
	depth := 0
	for !n.external() {
		if v[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + AveragePathLength(n.size)
}

// AveragePathLength 样本量为 n 时随机二叉划分的期望路径长度 c(n)
func AveragePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// Candidate 达到阈值的异常候选
type Candidate struct {
	Index int
	Score float64
}

// Detect 对每个向量打分，返回分数 >= threshold 的候选（保持原始顺序）
func (f *Forest) Detect(vectors []Vector, threshold float64) ([]Candidate, error) {
	var out []Candidate
	for i, v := range vectors {
		s, err := f.Score(v)
		if err != nil {
			return nil, err
		}
		if s >= threshold {
			out = append(out, Candidate{Index: i, Score: s})
		}
	}
	return out, nil
}
