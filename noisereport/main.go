package main

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/tuneinsight/partition-noise-analyzer/analyze"
	"github.com/tuneinsight/partition-noise-analyzer/dag"
	"github.com/tuneinsight/partition-noise-analyzer/partition"
	"github.com/tuneinsight/partition-noise-analyzer/stats"
)

var (
	DagPath   = flag.String("dag", "", "path of the JSON operation dag")
	OutPath   = flag.String("out", "", "path of the CSV variance matrix, stdout if empty")
	PCut      = flag.String("pcut", "", "comma separated precision cut, at most one value")
	Preferred = flag.Int("preferred", 0, "preferred partition of the levelled blocks")
)

func main() {

	flag.Parse()

	if err := run(); err != nil {
		color.Red("%s", err)
		var ie *analyze.InternalError
		if errors.As(err, &ie) {
			color.Red("fault: %s at operator %d", ie.Fault, ie.Op)
		}
		os.Exit(1)
	}
}

func run() (err error) {

	if *DagPath == "" {
		return fmt.Errorf("missing -dag")
	}

	pCut, err := parsePCut(*PCut)
	if err != nil {
		return
	}

	f, err := os.Open(*DagPath)
	if err != nil {
		return
	}
	defer f.Close()

	d, err := dag.ReadJSON(f)
	if err != nil {
		return
	}

	fmt.Printf("Operators: %d - PCut: %v - Preferred: %d\n", d.Len(), pCut.PCut, *Preferred)

	a, err := analyze.Analyze(d, analyze.DefaultNoiseBoundConfig, pCut, *Preferred)
	if err != nil {
		return
	}

	if err = a.CheckInvariants(); err != nil {
		return
	}

	fingerprint := a.Fingerprint()
	fmt.Printf("Partitions: %d - Expanded operators: %d - Fingerprint: %s\n", a.NbPartitions, len(a.Operators), hex.EncodeToString(fingerprint[:]))

	out := os.Stdout
	if *OutPath != "" {
		if out, err = os.Create(*OutPath); err != nil {
			return
		}
		defer out.Close()
	}

	if err = writeMatrix(csv.NewWriter(out), a); err != nil {
		return
	}

	w := csv.NewWriter(os.Stdout)
	if err = w.Write(stats.Header); err != nil {
		return
	}

	for _, s := range stats.Collect(a) {
		if s.Unset == len(a.OutVariances) {
			color.Yellow("partition %d: no materialized variance", s.Partition)
		}
		if err = w.Write(s.ToCSV()); err != nil {
			return
		}
	}

	w.Flush()

	return w.Error()
}

// writeMatrix writes one row per materialized (operator, partition) entry
// of the variance matrix with all its coefficients.
func writeMatrix(w *csv.Writer, a *analyze.AnalyzedDag) (err error) {

	n := a.NbPartitions

	header := []string{"OP", "KIND", "PARTITION", "HOME"}
	for p := 0; p < n; p++ {
		header = append(header, fmt.Sprintf("IN[%d]", p))
	}
	for p := 0; p < n; p++ {
		header = append(header, fmt.Sprintf("BR[%d]", p))
	}
	for src := 0; src < n; src++ {
		for dst := 0; dst < n; dst++ {
			header = append(header, fmt.Sprintf("FK[%d->%d]", src, dst))
		}
	}

	if err = w.Write(header); err != nil {
		return
	}

	for i := range a.OutVariances {
		for q := 0; q < n; q++ {

			if !a.InstrsPartition[i].Materialized(q) {
				continue
			}

			sv, err := a.Variance(i, q)
			if err != nil {
				return err
			}

			record := []string{
				strconv.Itoa(i),
				a.Operators[i].Kind(),
				strconv.Itoa(q),
				strconv.FormatBool(a.InstrsPartition[i].Partition == q),
			}

			for _, c := range sv.Coeffs() {
				record = append(record, strconv.FormatFloat(c, 'g', -1, 64))
			}

			if err = w.Write(record); err != nil {
				return err
			}
		}
	}

	w.Flush()

	return w.Error()
}

func parsePCut(s string) (pCut partition.PrecisionCut, err error) {

	if s == "" {
		return
	}

	for _, field := range strings.Split(s, ",") {
		var cut uint64
		if cut, err = strconv.ParseUint(strings.TrimSpace(field), 10, 64); err != nil {
			return pCut, fmt.Errorf("invalid -pcut %q: %w", s, err)
		}
		pCut.PCut = append(pCut.PCut, cut)
	}

	return pCut, pCut.Validate()
}
