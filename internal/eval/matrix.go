package eval

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ppiankov/claimgate/internal/model"
)

// ConfusionMatrix counts expected-vs-predicted decision pairs over the
// 3x3 decision grid. Cases with errors or out-of-enum values are not
// counted.
type ConfusionMatrix struct {
	counts map[model.Decision]map[model.Decision]int
}

// NewConfusionMatrix creates a zeroed matrix
func NewConfusionMatrix() *ConfusionMatrix {
	counts := make(map[model.Decision]map[model.Decision]int, 3)
	for _, expected := range model.Decisions() {
		counts[expected] = make(map[model.Decision]int, 3)
	}
	return &ConfusionMatrix{counts: counts}
}

// Add records one case. Invalid decisions are ignored.
func (m *ConfusionMatrix) Add(expected, predicted model.Decision) {
	if !expected.IsValid() || !predicted.IsValid() {
		return
	}
	m.counts[expected][predicted]++
}

// Count returns one cell
func (m *ConfusionMatrix) Count(expected, predicted model.Decision) int {
	return m.counts[expected][predicted]
}

// Total returns the number of counted cases
func (m *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m.counts {
		for _, count := range row {
			total += count
		}
	}
	return total
}

// Correct returns the diagonal sum
func (m *ConfusionMatrix) Correct() int {
	correct := 0
	for _, decision := range model.Decisions() {
		correct += m.counts[decision][decision]
	}
	return correct
}

// matrixGrid adapts the matrix to the heatmap's grid interface. Row 0
// is the bottom of the plot, so expected decisions are reversed to put
// APPROVE at the top.
type matrixGrid struct {
	matrix *ConfusionMatrix
}

func (g matrixGrid) Dims() (int, int) { return 3, 3 }
func (g matrixGrid) X(c int) float64  { return float64(c) }
func (g matrixGrid) Y(r int) float64  { return float64(r) }

func (g matrixGrid) Z(c, r int) float64 {
	decisions := model.Decisions()
	expected := decisions[len(decisions)-1-r]
	predicted := decisions[c]
	return float64(g.matrix.Count(expected, predicted))
}

// RenderPNG writes the matrix as a heatmap image with per-cell counts
func (m *ConfusionMatrix) RenderPNG(path string) error {
	p := plot.New()
	p.Title.Text = "Confusion Matrix - Claims Processing Evaluation"
	p.X.Label.Text = "Predicted Decision"
	p.Y.Label.Text = "Expected Decision"

	grid := matrixGrid{matrix: m}
	heatmap := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(heatmap)

	p.NominalX("APPROVE", "DENY", "UNCERTAIN")
	p.NominalY("UNCERTAIN", "DENY", "APPROVE")

	labels, err := cellLabels(m)
	if err != nil {
		return fmt.Errorf("build cell labels: %w", err)
	}
	p.Add(labels)

	if err := p.Save(6*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save confusion matrix: %w", err)
	}
	return nil
}

func cellLabels(m *ConfusionMatrix) (*plotter.Labels, error) {
	decisions := model.Decisions()
	var positions []plotter.XY
	var texts []string
	for row, expected := range decisions {
		for col, predicted := range decisions {
			positions = append(positions, plotter.XY{
				X: float64(col),
				Y: float64(len(decisions) - 1 - row),
			})
			texts = append(texts, fmt.Sprintf("%d", m.Count(expected, predicted)))
		}
	}
	return plotter.NewLabels(plotter.XYLabels{XYs: positions, Labels: texts})
}
