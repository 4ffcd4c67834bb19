package plot

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ComparisonFileName is written when more than one target has data.
const ComparisonFileName = "resource_comparison.png"

var (
	cpuColor = color.RGBA{B: 255, A: 255}
	memColor = color.RGBA{R: 255, A: 255}
)

// ProfileFileName 单个 target 的图表文件名，非法文件名字符替换为 "_"
func ProfileFileName(target string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, target)
	if clean == "" {
		clean = "unknown"
	}
	return clean + "_profile.png"
}

// Renderer 使用 gonum/plot 绘制 PNG 图表
type Renderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewRenderer 创建默认尺寸的渲染器
func NewRenderer() *Renderer {
	return &Renderer{Width: 12 * vg.Inch, Height: 8 * vg.Inch}
}

// Render draws one chart per target with data and a comparison chart when
// there are at least two. A failing chart does not stop the others; the
// written paths and the joined errors are both returned.
func (r *Renderer) Render(dir string, series []TargetSeries) ([]string, error) {
	series = WithData(series)
	if len(series) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	var (
		written []string
		errs    []error
	)
	for _, s := range series {
		path := filepath.Join(dir, ProfileFileName(s.Target))
		if err := r.drawIndividual(path, s); err != nil {
			errs = append(errs, fmt.Errorf("plot %s: %w", s.Target, err))
			continue
		}
		written = append(written, path)
	}
	if len(series) > 1 {
		path := filepath.Join(dir, ComparisonFileName)
		if err := r.drawComparison(path, series); err != nil {
			errs = append(errs, fmt.Errorf("comparison plot: %w", err))
		} else {
			written = append(written, path)
		}
	}
	return written, errors.Join(errs...)
}

func (r *Renderer) drawIndividual(path string, s TargetSeries) error {
	cpuPlot := newPanel(s.Target+" - Resource Usage Over Time", "CPU Usage (%)", "")
	memPlot := newPanel("", "Memory Usage (MB)", "Time")

	if s.CPU.Len() > 0 {
		st := Summarize(s.CPU.Values)
		cpuPlot.Title.Text += fmt.Sprintf("\nAvg: %.1f%% | Max: %.1f%%", st.Avg, st.Max)
		if err := addLine(cpuPlot, s.CPU, "CPU Usage", cpuColor, false); err != nil {
			return err
		}
	}
	if s.Memory.Len() > 0 {
		st := Summarize(s.Memory.Values)
		memPlot.Title.Text = fmt.Sprintf("Avg: %.1f MB | Max: %.1f MB", st.Avg, st.Max)
		if err := addLine(memPlot, s.Memory, "Memory Usage", memColor, false); err != nil {
			return err
		}
	}
	return r.save(path, cpuPlot, memPlot)
}

func (r *Renderer) drawComparison(path string, series []TargetSeries) error {
	cpuPlot := newPanel("Resource Usage Comparison", "CPU Usage (%)", "")
	memPlot := newPanel("", "Memory Usage (MB)", "Time")

	for i, s := range series {
		c := plotutil.Color(i)
		if s.CPU.Len() > 0 {
			if err := addLine(cpuPlot, s.CPU, s.Target+" CPU", c, false); err != nil {
				return err
			}
		}
		if s.Memory.Len() > 0 {
			if err := addLine(memPlot, s.Memory, s.Target+" Memory", c, true); err != nil {
				return err
			}
		}
	}
	return r.save(path, cpuPlot, memPlot)
}

func newPanel(title, yLabel, xLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.X.Label.Text = xLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, s Series, label string, c color.Color, dashed bool) error {
	xys := make(plotter.XYs, s.Len())
	for i := range s.Values {
		xys[i].X = unixSeconds(s.Times[i])
		xys[i].Y = s.Values[i]
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(2)
	if dashed {
		line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	}
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// save stacks the panels vertically on one canvas and encodes it as PNG.
func (r *Renderer) save(path string, top, bottom *plot.Plot) (err error) {
	plots := [][]*plot.Plot{{top}, {bottom}}
	img := vgimg.New(r.Width, r.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	png := vgimg.PngCanvas{Canvas: img}
	_, err = png.WriteTo(f)
	return err
}
