package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"elephant-logger/models"
)

// PCAResult holds the principal components of the standardized feature matrix.
type PCAResult struct {
	// VarianceRatios is the fraction of total variance explained per
	// component, in descending order.
	VarianceRatios []float64
	// Loadings is the component matrix, one column per component.
	Loadings *mat.Dense
	// Scores projects every sample onto the components, one row per sample.
	Scores *mat.Dense
}

// RunPCA standardizes each feature column to zero mean and unit variance and
// computes the principal components. Needs more samples than features.
func RunPCA(samples []models.LabeledSample) (*PCAResult, error) {
	n := len(samples)
	d := len(models.FeatureNames())
	if n <= d {
		return nil, fmt.Errorf("need more than %d samples for PCA, got %d", d, n)
	}

	standardized := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := Column(samples, j)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		for i, v := range col {
			standardized.Set(i, j, (v-mean)/std)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(standardized, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}

	var loadings mat.Dense
	pc.VectorsTo(&loadings)

	variances := pc.VarsTo(nil)
	var total float64
	for _, v := range variances {
		total += v
	}
	ratios := make([]float64, len(variances))
	if total > 0 {
		for i, v := range variances {
			ratios[i] = v / total
		}
	}

	var scores mat.Dense
	scores.Mul(standardized, &loadings)

	return &PCAResult{
		VarianceRatios: ratios,
		Loadings:       &loadings,
		Scores:         &scores,
	}, nil
}

// CumulativeVariance sums the first k variance ratios.
func (r *PCAResult) CumulativeVariance(k int) float64 {
	if k > len(r.VarianceRatios) {
		k = len(r.VarianceRatios)
	}
	var sum float64
	for _, ratio := range r.VarianceRatios[:k] {
		sum += ratio
	}
	return sum
}
