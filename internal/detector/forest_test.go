package detector

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"
)

// ── 测试辅助 ──

// clusterWithOutlier 生成一组紧凑的“正常”向量，末尾附加一个远离簇的离群点
func clusterWithOutlier(rng *rand.Rand, n int) []Vector {
	vectors := make([]Vector, 0, n+1)
	for i := 0; i < n; i++ {
		in := 9 + rng.Float64()*0.5
		vectors = append(vectors, Vector{
			in, in + 8, 8, float64(3 + rng.Intn(5)), float64(3 + rng.Intn(5)),
			2, 2500, float64(1 + rng.Intn(5)), in - 9,
		})
	}
	vectors = append(vectors, Vector{2, 17.5, 15.5, 0, 14, 2, 2500, 6, -7})
	return vectors
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	return s[len(s)/2]
}

// ════════════════════════════════════════════════════════════
// AveragePathLength
// ════════════════════════════════════════════════════════════

func TestAveragePathLength(t *testing.T) {
	if c := AveragePathLength(0); c != 0 {
		t.Errorf("期望 c(0)=0，实际=%f", c)
	}
	if c := AveragePathLength(1); c != 0 {
		t.Errorf("期望 c(1)=0，实际=%f", c)
	}
	if c := AveragePathLength(2); c != 1 {
		t.Errorf("期望 c(2)=1，实际=%f", c)
	}
	// c(256) = 2(ln255 + γ) - 2·255/256
	want := 2*(math.Log(255)+0.5772156649) - 2*255.0/256.0
	if c := AveragePathLength(256); math.Abs(c-want) > 1e-12 {
		t.Errorf("期望 c(256)=%f，实际=%f", want, c)
	}
}

// ════════════════════════════════════════════════════════════
// Fit / Score
// ════════════════════════════════════════════════════════════

func TestForest_Score_NotFitted(t *testing.T) {
	f := NewForest(10, 16, NewSeededRandSource(1))
	if _, err := f.Score(Vector{}); !errors.Is(err, ErrModelNotFitted) {
		t.Errorf("期望 ErrModelNotFitted，实际: %v", err)
	}
	if _, err := f.Detect([]Vector{{}}, 0.5); !errors.Is(err, ErrModelNotFitted) {
		t.Errorf("Detect 期望 ErrModelNotFitted，实际: %v", err)
	}
}

func TestForest_Fit_SampleSizeAndDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	f := NewForest(0, 0, NewSeededRandSource(7))
	f.Fit(clusterWithOutlier(rng, 299))
	if f.SampleSize() != 256 {
		t.Errorf("期望 SampleSize=256，实际=%d", f.SampleSize())
	}
	if f.MaxDepth() != 8 {
		t.Errorf("期望 MaxDepth=8，实际=%d", f.MaxDepth())
	}
	if f.NumTrees() != DefaultNumTrees {
		t.Errorf("期望 %d 棵树，实际=%d", DefaultNumTrees, f.NumTrees())
	}

	f.Fit(clusterWithOutlier(rng, 9))
	if f.SampleSize() != 10 {
		t.Errorf("期望 SampleSize=10，实际=%d", f.SampleSize())
	}
	if f.MaxDepth() != 4 {
		t.Errorf("期望 MaxDepth=ceil(log2 10)=4，实际=%d", f.MaxDepth())
	}
}

func TestForest_Fit_EmptyClearsTrees(t *testing.T) {
	f := NewForest(5, 8, NewSeededRandSource(3))
	f.Fit(clusterWithOutlier(rand.New(rand.NewSource(3)), 20))
	f.Fit(nil)
	if _, err := f.Score(Vector{}); !errors.Is(err, ErrModelNotFitted) {
		t.Errorf("空批次训练后应视为未训练，实际: %v", err)
	}
}

func TestForest_Score_InRange(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	vectors := clusterWithOutlier(rng, 120)

	f := NewForest(50, 64, NewSeededRandSource(11))
	f.Fit(vectors)

	inputs := append([]Vector{{}, {24, 24, 100, 1000, 1000, 2, 1e9, 6, 15}}, vectors...)
	for i, v := range inputs {
		s, err := f.Score(v)
		if err != nil {
			t.Fatalf("Score 失败: %v", err)
		}
		if s <= 0 || s > 1 {
			t.Errorf("第 %d 个向量分数越界: %f", i, s)
		}
	}
}

func TestForest_Score_SingleSampleIsNeutral(t *testing.T) {
	f := NewForest(10, 256, NewSeededRandSource(5))
	f.Fit([]Vector{{9, 17, 8}})

	s, err := f.Score(Vector{9, 17, 8})
	if err != nil {
		t.Fatalf("Score 失败: %v", err)
	}
	if s != 0.5 {
		t.Errorf("单样本时归一化因子为 0，期望 0.5，实际=%f", s)
	}
}

func TestForest_Score_IdenticalRowsAreLeaves(t *testing.T) {
	rows := make([]Vector, 32)
	for i := range rows {
		rows[i] = Vector{9, 17, 8, 3, 10, 2, 2500, 2, 0}
	}
	f := NewForest(20, 256, NewSeededRandSource(9))
	f.Fit(rows)

	// 所有特征恒定 → 每棵树只有根叶子，路径长度 = c(32)，分数 = 2^-1
	s, err := f.Score(rows[0])
	if err != nil {
		t.Fatalf("Score 失败: %v", err)
	}
	if math.Abs(s-0.5) > 1e-12 {
		t.Errorf("期望 0.5，实际=%f", s)
	}
}

func TestForest_OutlierScoresAboveClusterMedian(t *testing.T) {
	const trials = 20
	wins := 0
	for trial := 0; trial < trials; trial++ {
		rng := rand.New(rand.NewSource(int64(100 + trial)))
		vectors := clusterWithOutlier(rng, 200)

		f := NewForest(DefaultNumTrees, DefaultMaxSamples, NewSeededRandSource(int64(trial)))
		f.Fit(vectors)

		scores := make([]float64, len(vectors))
		for i, v := range vectors {
			s, err := f.Score(v)
			if err != nil {
				t.Fatalf("Score 失败: %v", err)
			}
			scores[i] = s
		}

		outlier := scores[len(scores)-1]
		if outlier > median(scores[:len(scores)-1]) {
			wins++
		}
	}
	if wins < trials*9/10 {
		t.Errorf("离群点得分应在绝大多数试验中高于簇中位数，实际 %d/%d", wins, trials)
	}
}

func TestForest_Detect_ReturnsIndexAndScore(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	vectors := clusterWithOutlier(rng, 150)

	f := NewForest(DefaultNumTrees, DefaultMaxSamples, NewSeededRandSource(21))
	f.Fit(vectors)

	candidates, err := f.Detect(vectors, DefaultThreshold)
	if err != nil {
		t.Fatalf("Detect 失败: %v", err)
	}

	foundOutlier := false
	for _, c := range candidates {
		if c.Score < DefaultThreshold {
			t.Errorf("候选分数 %f 低于阈值", c.Score)
		}
		s, _ := f.Score(vectors[c.Index])
		if s != c.Score {
			t.Errorf("候选 %d 分数不一致: %f vs %f", c.Index, c.Score, s)
		}
		if c.Index == len(vectors)-1 {
			foundOutlier = true
		}
	}
	if !foundOutlier {
		t.Error("离群点应被检出")
	}

	// 阈值 > 1 时不应有任何候选
	none, _ := f.Detect(vectors, 1.01)
	if len(none) != 0 {
		t.Errorf("期望 0 个候选，实际=%d", len(none))
	}
}

func TestForest_Fit_ReplacesPreviousTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	f := NewForest(10, 256, NewSeededRandSource(4))

	f.Fit(clusterWithOutlier(rng, 300))
	if f.SampleSize() != 256 {
		t.Fatalf("期望 256，实际=%d", f.SampleSize())
	}
	f.Fit(clusterWithOutlier(rng, 3))
	if f.NumTrees() != 10 {
		t.Errorf("重新训练后树数量应保持 10，实际=%d", f.NumTrees())
	}
	if f.SampleSize() != 4 {
		t.Errorf("期望 SampleSize=4，实际=%d", f.SampleSize())
	}
}
