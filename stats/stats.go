package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tuneinsight/partition-noise-analyzer/analyze"
	"github.com/tuneinsight/partition-noise-analyzer/symbolic"
)

var Header = []string{
	"PARTITION",
	"DEFINED",
	"CONVERTED",
	"UNSET",
	"MAX IN",
	"AVG IN",
	"MAX BR",
	"AVG BR",
	"MAX FK",
	"AVG FK",
}

// VarianceStats is a struct storing statistics about the variances of one
// partition column. The coefficient statistics are given in log2 and are
// computed over the defined entries.
type VarianceStats struct {
	Partition int
	Defined   int
	Converted int
	Unset     int

	MaxInput  float64
	MeanInput float64
	MaxPBS    float64
	MeanPBS   float64
	MaxFKS    float64
	MeanFKS   float64

	input []float64
	pbs   []float64
	fks   []float64
}

func NewVarianceStats(partition int) (s *VarianceStats) {
	return &VarianceStats{
		Partition: partition,

		input: []float64{},
		pbs:   []float64{},
		fks:   []float64{},
	}
}

// Update records sv, the variance of an operator in this partition. home
// reports whether the partition is the home partition of the operator.
func (s *VarianceStats) Update(sv symbolic.SymbolicVariance, home bool) {

	if !sv.IsValid() {
		s.Unset++
		return
	}

	s.Defined++

	if !home {
		s.Converted++
	}

	var in, pbs, fks float64

	n := sv.NbPartitions()
	for p := 0; p < n; p++ {
		in += sv.CoeffInput(p)
		pbs += sv.CoeffPBS(p)
		for q := 0; q < n; q++ {
			fks += sv.CoeffPartitionKeyswitchToBig(p, q)
		}
	}

	s.input = append(s.input, in)
	s.pbs = append(s.pbs, pbs)
	s.fks = append(s.fks, fks)
}

func (s *VarianceStats) Finalize() {

	if s.Defined == 0 {
		return
	}

	s.MaxInput, s.MeanInput = log2MaxMean(s.input)
	s.MaxPBS, s.MeanPBS = log2MaxMean(s.pbs)
	s.MaxFKS, s.MeanFKS = log2MaxMean(s.fks)
}

func (s *VarianceStats) ToCSV() []string {
	return []string{
		fmt.Sprintf("%d", s.Partition),
		fmt.Sprintf("%d", s.Defined),
		fmt.Sprintf("%d", s.Converted),
		fmt.Sprintf("%d", s.Unset),
		fmt.Sprintf("%.5f", s.MaxInput),
		fmt.Sprintf("%.5f", s.MeanInput),
		fmt.Sprintf("%.5f", s.MaxPBS),
		fmt.Sprintf("%.5f", s.MeanPBS),
		fmt.Sprintf("%.5f", s.MaxFKS),
		fmt.Sprintf("%.5f", s.MeanFKS),
	}
}

// Collect returns the finalized statistics of every partition of a.
func Collect(a *analyze.AnalyzedDag) (s []*VarianceStats) {

	s = make([]*VarianceStats, a.NbPartitions)
	for q := range s {
		s[q] = NewVarianceStats(q)
	}

	for i, row := range a.OutVariances {
		for q, sv := range row {
			s[q].Update(sv, a.InstrsPartition[i].Partition == q)
		}
	}

	for _, sq := range s {
		sq.Finalize()
	}

	return
}

// log2MaxMean returns the log2 of the max and of the mean of values, a
// null coefficient being reported as 0.
func log2MaxMean(values []float64) (maxLog2, meanLog2 float64) {
	return log2(floats.Max(values)), log2(stat.Mean(values, nil))
}

func log2(c float64) float64 {
	if c == 0 {
		return 0
	}
	return math.Log2(c)
}
