package distill

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// FixedSeed is the deterministic seed k-means always uses, never the
// package-level global RNG, so determinism holds regardless of what else a
// concurrent caller does with math/rand (spec.md §9, P5).
const FixedSeed = 1729

const maxIterations = 100

// KMeansResult is the outcome of clustering an n×d matrix into k clusters.
// Assignments[i] is the cluster index of row i, always in [0, k). A cluster
// index can end up with zero members if it degenerates to empty during
// iteration; that cluster id simply never appears in Assignments, rather
// than any row being marked as unassigned.
type KMeansResult struct {
	Assignments []int
	Centroids   *mat.Dense // k × d
}

// KMeans runs Lloyd's algorithm on data (n×d) with k clusters, seeded by
// FixedSeed for determinism (P5). Centroids are initialized by picking k
// distinct rows via the seeded RNG. A cluster that becomes empty during
// iteration is not re-seeded: its centroid row is set to the zero vector for
// the next round, and iteration continues while any cluster is empty, up to
// maxIterations. The caller identifies which cluster ids ended up with members by
// inspecting Assignments itself (spec.md §4.5: "omitted from the output,
// not re-seeded").
func KMeans(data *mat.Dense, k int) KMeansResult {
	n, d := data.Dims()
	if k > n {
		k = n
	}
	if k <= 0 {
		return KMeansResult{Assignments: make([]int, n)}
	}

	rng := rand.New(rand.NewSource(FixedSeed))
	centroids := initCentroids(data, k, rng)
	assignments := make([]int, n)

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			row := mat.Row(nil, i, data)
			best, bestDist := -1, math.Inf(1)
			for c := 0; c < k; c++ {
				dist := sqDist(row, mat.Row(nil, c, centroids))
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if assignments[i] != best {
				changed = true
			}
			assignments[i] = best
		}

		newCentroids, empty := recomputeCentroids(data, assignments, k, d)
		centroids = newCentroids
		if !changed && !empty {
			break
		}
	}

	return KMeansResult{Assignments: assignments, Centroids: centroids}
}

func initCentroids(data *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := data.Dims()
	perm := rng.Perm(n)[:k]
	out := mat.NewDense(k, d, nil)
	for i, idx := range perm {
		out.SetRow(i, mat.Row(nil, idx, data))
	}
	return out
}

func recomputeCentroids(data *mat.Dense, assignments []int, k, d int) (*mat.Dense, bool) {
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}

	n, _ := data.Dims()
	for i := 0; i < n; i++ {
		c := assignments[i]
		counts[c]++
		row := mat.Row(nil, i, data)
		for j, v := range row {
			sums[c][j] += v
		}
	}

	out := mat.NewDense(k, d, nil)
	anyEmpty := false
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			anyEmpty = true
			continue
		}
		for j := 0; j < d; j++ {
			sums[c][j] /= float64(counts[c])
		}
		out.SetRow(c, sums[c])
	}
	return out, anyEmpty
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// NonEmptyClusters returns the set of cluster indices that received at
// least one assignment.
func NonEmptyClusters(assignments []int, k int) []int {
	present := make([]bool, k)
	for _, c := range assignments {
		if c >= 0 && c < k {
			present[c] = true
		}
	}
	var out []int
	for c, ok := range present {
		if ok {
			out = append(out, c)
		}
	}
	return out
}
