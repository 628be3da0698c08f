package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// TrainingSet is the joined per-pixel feature/label table over a set of
// historical years. Labels come from the per-year water masks: 1 for water,
// 0 for land.
type TrainingSet struct {
	X     *mat.Dense
	Y     []float64
	Years []int // sorted years contributing samples
	// rowYears[i] is the year sample i belongs to, enabling temporal splits.
	rowYears []int
}

// BuildTrainingSet assembles one labeled sample per valid pixel per year.
// Every requested year needs both a water mask and complete feature layers;
// the combined label set must contain both classes.
func BuildTrainingSet(layers *FeatureLayers, masks map[int]*Mask, years []int) (*TrainingSet, error) {
	if len(years) == 0 {
		return nil, fmt.Errorf("no training years: %w", ErrInsufficientData)
	}
	sorted := make([]int, len(years))
	copy(sorted, years)
	sort.Ints(sorted)

	var (
		data     []float64
		labels   []float64
		rowYears []int
	)
	for _, year := range sorted {
		m, ok := masks[year]
		if !ok {
			return nil, fmt.Errorf("no water mask for year %d: %w", year, ErrMisaligned)
		}
		if err := checkAligned(layers.Elevation.Frame, m.Frame, "training labels"); err != nil {
			return nil, err
		}
		x, idx, err := layers.Matrix(year)
		if err != nil {
			return nil, fmt.Errorf("features for year %d: %w", year, err)
		}
		n, p := x.Dims()
		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				data = append(data, x.At(i, j))
			}
			if m.Bits[idx[i]] {
				labels = append(labels, 1)
			} else {
				labels = append(labels, 0)
			}
			rowYears = append(rowYears, year)
		}
	}

	var pos int
	for _, v := range labels {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return nil, fmt.Errorf("training years %v: %w", sorted, ErrDegenerateLabels)
	}

	return &TrainingSet{
		X:        mat.NewDense(len(labels), len(FeatureNames), data),
		Y:        labels,
		Years:    sorted,
		rowYears: rowYears,
	}, nil
}

// split partitions the set into rows outside and inside the holdout year.
func (ts *TrainingSet) split(holdoutYear int) (train, holdout *TrainingSet, err error) {
	var trainRows, holdRows []int
	for i, y := range ts.rowYears {
		if y == holdoutYear {
			holdRows = append(holdRows, i)
		} else {
			trainRows = append(trainRows, i)
		}
	}
	if len(holdRows) == 0 {
		return nil, nil, fmt.Errorf("holdout year %d has no samples: %w", holdoutYear, ErrInsufficientData)
	}
	if len(trainRows) == 0 {
		return nil, nil, fmt.Errorf("no training samples outside holdout year %d: %w", holdoutYear, ErrInsufficientData)
	}
	return ts.subset(trainRows), ts.subset(holdRows), nil
}

func (ts *TrainingSet) subset(rows []int) *TrainingSet {
	_, p := ts.X.Dims()
	data := make([]float64, 0, len(rows)*p)
	y := make([]float64, 0, len(rows))
	ry := make([]int, 0, len(rows))
	yearSet := map[int]bool{}
	for _, i := range rows {
		for j := 0; j < p; j++ {
			data = append(data, ts.X.At(i, j))
		}
		y = append(y, ts.Y[i])
		ry = append(ry, ts.rowYears[i])
		yearSet[ts.rowYears[i]] = true
	}
	years := make([]int, 0, len(yearSet))
	for yr := range yearSet {
		years = append(years, yr)
	}
	sort.Ints(years)
	return &TrainingSet{X: mat.NewDense(len(rows), p, data), Y: y, Years: years, rowYears: ry}
}

// Evaluation reports holdout performance of a trained model: plain accuracy
// and balanced accuracy (mean of per-class recalls), measured on a whole
// withheld year so correlated same-year pixels cannot leak into training.
type Evaluation struct {
	HoldoutYear      int
	Samples          int
	Accuracy         float64
	BalancedAccuracy float64
}

// Model is a fitted classifier versioned by its training-year set.
type Model struct {
	Classifier Classifier
	TrainYears []int
	Version    string
	FittedAt   time.Time
}

// TrainHoldout fits clf on every year except holdoutYear and evaluates on
// the withheld year.
func TrainHoldout(clf Classifier, ts *TrainingSet, holdoutYear int) (*Model, Evaluation, error) {
	train, hold, err := ts.split(holdoutYear)
	if err != nil {
		return nil, Evaluation{}, err
	}
	if err := clf.Fit(train.X, train.Y); err != nil {
		return nil, Evaluation{}, fmt.Errorf("fit on years %v: %w", train.Years, err)
	}

	probs, err := clf.PredictProb(hold.X)
	if err != nil {
		return nil, Evaluation{}, err
	}
	ev := evaluate(probs, hold.Y)
	ev.HoldoutYear = holdoutYear

	return &Model{
		Classifier: clf,
		TrainYears: train.Years,
		Version:    modelVersion(train.Years),
		FittedAt:   clock.Now(),
	}, ev, nil
}

func evaluate(probs, y []float64) Evaluation {
	var correct int
	var tp, tn, pos, neg float64
	for i, p := range probs {
		pred := 0.0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
		if y[i] == 1 {
			pos++
			if pred == 1 {
				tp++
			}
		} else {
			neg++
			if pred == 0 {
				tn++
			}
		}
	}
	ev := Evaluation{
		Samples:  len(y),
		Accuracy: float64(correct) / float64(len(y)),
	}
	switch {
	case pos > 0 && neg > 0:
		ev.BalancedAccuracy = (tp/pos + tn/neg) / 2
	case pos > 0:
		ev.BalancedAccuracy = tp / pos
	default:
		ev.BalancedAccuracy = tn / neg
	}
	return ev
}

func modelVersion(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return "train-" + strings.Join(parts, "-")
}

// PredictSurface computes the flood-probability grid for a scenario year.
// Pixels without complete features carry no-data.
func PredictSurface(m *Model, layers *FeatureLayers, year int) (*Grid, error) {
	x, idx, err := layers.Matrix(year)
	if err != nil {
		return nil, err
	}
	probs, err := m.Classifier.PredictProb(x)
	if err != nil {
		return nil, err
	}

	out := NewGrid(layers.Elevation.Frame, year, BandProbability)
	out.Fill(NoData)
	for i, flat := range idx {
		out.Set(probs[i], flat/out.Cols, flat%out.Cols)
	}
	return out, nil
}

// RiskZones vectorizes the connected regions whose flood probability is at
// or above the configured threshold, using the same cleanup policy as the
// shoreline vectorizer.
func RiskZones(prob *Grid, threshold float64, cfg VectorizeConfig) (Shoreline, error) {
	if prob.Band != BandProbability {
		return Shoreline{}, fmt.Errorf("risk zones: operand is %q: %w", prob.Band, ErrMissingBand)
	}
	if threshold <= 0 || threshold >= 1 {
		return Shoreline{}, fmt.Errorf("risk threshold %g outside (0, 1)", threshold)
	}
	m := NewMask(prob.Frame, prob.Year)
	for r := 0; r < prob.Rows; r++ {
		for c := 0; c < prob.Cols; c++ {
			v := prob.At(r, c)
			if !IsNoData(v) && v >= threshold {
				m.Set(true, r, c)
			}
		}
	}
	return Vectorize(m, cfg)
}
