package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/impact"
)

const (
	plotWidth  = 12 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// RenderProfilePlot draws normalized beta (squares) and normalized depth (triangles)
// against the time-of-day slots. The image format follows the file extension.
func RenderProfilePlot(profile []impact.ProfilePoint, outputPath string) error {
	if len(profile) == 0 {
		return apperrors.NewInsufficientDataError("no profile to plot")
	}

	p := plot.New()
	p.Title.Text = "Intraday price impact and depth"
	p.X.Label.Text = "Hours"
	p.Y.Label.Text = "Normalized value"
	p.X.Tick.Marker = slotTicks(profile)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Add(plotter.NewGrid())

	betas := series(profile, func(pt impact.ProfilePoint) float64 { return pt.NormalizedBeta })
	depths := series(profile, func(pt impact.ProfilePoint) float64 { return pt.NormalizedDepth })
	if len(betas) == 0 || len(depths) == 0 {
		return apperrors.NewInsufficientDataError("profile has no finite values to plot")
	}

	betaLine, betaPoints, err := plotter.NewLinePoints(betas)
	if err != nil {
		return apperrors.NewComputationError("build beta series", err)
	}
	betaLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	betaPoints.Shape = draw.BoxGlyph{}
	betaPoints.Color = betaLine.Color
	betaPoints.Radius = vg.Points(3)

	depthLine, depthPoints, err := plotter.NewLinePoints(depths)
	if err != nil {
		return apperrors.NewComputationError("build depth series", err)
	}
	depthLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	depthPoints.Shape = draw.TriangleGlyph{}
	depthPoints.Color = depthLine.Color
	depthPoints.Radius = vg.Points(3)

	p.Add(betaLine, betaPoints, depthLine, depthPoints)
	p.Legend.Add("beta", betaLine, betaPoints)
	p.Legend.Add("depth", depthLine, depthPoints)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("create output directory", err)
	}
	if err := p.Save(plotWidth, plotHeight, outputPath); err != nil {
		return apperrors.NewStorageError("save plot", err).WithContext("path", outputPath)
	}
	return nil
}

// series places slot i at x = i and drops slots without a value
func series(profile []impact.ProfilePoint, value func(impact.ProfilePoint) float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(profile))
	for i, pt := range profile {
		v := value(pt)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(i), Y: v})
	}
	return xys
}

// slotTicks labels every second slot
func slotTicks(profile []impact.ProfilePoint) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(profile))
	for i, pt := range profile {
		ticks[i] = plot.Tick{Value: float64(i)}
		if i%2 == 0 {
			ticks[i].Label = pt.Slot
		}
	}
	return ticks
}
