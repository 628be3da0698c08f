package domain

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Classifier is the polymorphic model contract of the water predictor:
// anything that fits tabular features against binary labels and emits a
// probability in [0, 1] per sample satisfies it.
type Classifier interface {
	Fit(x *mat.Dense, y []float64) error
	PredictProb(x *mat.Dense) ([]float64, error)
}

// Logistic is a regularized logistic-regression classifier trained by
// full-batch gradient descent on standardized features. Training is
// deterministic for a given seed: the seed only drives subsampling when the
// training set exceeds MaxSamples.
type Logistic struct {
	Epochs     int
	Rate       float64
	L2         float64
	MaxSamples int

	seed    int64
	weights []float64
	bias    float64
	means   []float64
	stds    []float64
}

// NewLogistic returns a Logistic with training hyperparameters that converge
// well on standardized water/terrain features.
func NewLogistic(seed int64) *Logistic {
	return &Logistic{
		Epochs:     300,
		Rate:       0.5,
		L2:         1e-4,
		MaxSamples: 200_000,
		seed:       seed,
	}
}

// Fit trains the classifier. Labels must be 0 or 1 and both classes must be
// present; a single-class set fails with ErrDegenerateLabels.
func (l *Logistic) Fit(x *mat.Dense, y []float64) error {
	n, p := x.Dims()
	if n != len(y) {
		return fmt.Errorf("%d feature rows vs %d labels: %w", n, len(y), ErrMisaligned)
	}
	var pos, neg int
	for _, v := range y {
		switch v {
		case 0:
			neg++
		case 1:
			pos++
		default:
			return fmt.Errorf("label %g is not binary", v)
		}
	}
	if pos == 0 || neg == 0 {
		return fmt.Errorf("%d positive / %d negative samples: %w", pos, neg, ErrDegenerateLabels)
	}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	if n > l.MaxSamples {
		rng := rand.New(rand.NewSource(l.seed))
		rng.Shuffle(n, func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		rows = rows[:l.MaxSamples]
		n = l.MaxSamples
	}

	l.fitScaler(x, rows, p)

	// Standardized copy of the (sub)sample.
	xs := make([][]float64, n)
	ys := make([]float64, n)
	for i, ri := range rows {
		xi := make([]float64, p)
		for j := 0; j < p; j++ {
			xi[j] = (x.At(ri, j) - l.means[j]) / l.stds[j]
		}
		xs[i] = xi
		ys[i] = y[ri]
	}

	l.weights = make([]float64, p)
	l.bias = 0
	gradW := make([]float64, p)
	for epoch := 0; epoch < l.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		var gradB float64
		for i, xi := range xs {
			z := l.bias
			for j, w := range l.weights {
				z += w * xi[j]
			}
			e := sigmoid(z) - ys[i]
			for j := range gradW {
				gradW[j] += e * xi[j]
			}
			gradB += e
		}
		fn := float64(len(xs))
		for j := range l.weights {
			l.weights[j] -= l.Rate * (gradW[j]/fn + l.L2*l.weights[j])
		}
		l.bias -= l.Rate * gradB / fn
	}
	return nil
}

// PredictProb returns the water probability for each feature row.
func (l *Logistic) PredictProb(x *mat.Dense) ([]float64, error) {
	if l.weights == nil {
		return nil, fmt.Errorf("classifier not fitted")
	}
	n, p := x.Dims()
	if p != len(l.weights) {
		return nil, fmt.Errorf("%d feature columns, model has %d: %w", p, len(l.weights), ErrMisaligned)
	}
	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		z := l.bias
		for j, w := range l.weights {
			z += w * (x.At(i, j) - l.means[j]) / l.stds[j]
		}
		probs[i] = sigmoid(z)
	}
	return probs, nil
}

func (l *Logistic) fitScaler(x *mat.Dense, rows []int, p int) {
	l.means = make([]float64, p)
	l.stds = make([]float64, p)
	fn := float64(len(rows))
	for j := 0; j < p; j++ {
		var sum float64
		for _, ri := range rows {
			sum += x.At(ri, j)
		}
		mean := sum / fn
		var ss float64
		for _, ri := range rows {
			d := x.At(ri, j) - mean
			ss += d * d
		}
		std := math.Sqrt(ss / fn)
		if std == 0 {
			// Constant column (e.g. rainfall within one training year):
			// map to zero instead of dividing by zero.
			std = 1
		}
		l.means[j] = mean
		l.stds[j] = std
	}
}

func sigmoid(z float64) float64 {
	// Clamp to keep exp finite; probabilities saturate anyway.
	if z > 35 {
		return 1
	}
	if z < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}
