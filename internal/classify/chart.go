package classify

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
	"tickerfeed/internal/fetch"
)

// ChartClassifier tags a single image as a price chart or anything else.
type ChartClassifier interface {
	Classify(ctx context.Context, imageURL string) domain.MediaTag
}

type imageFetcher interface {
	Text(ctx context.Context, req fetch.Request) string
}

// HeuristicChartClassifier decides from pixels alone: charts are flat-colour
// renders with long axis and gridline runs, photos are not. Anything that
// fails to fetch or decode is tagged other.
type HeuristicChartClassifier struct {
	tracer  trace.Tracer
	fetcher imageFetcher
}

func NewHeuristicChartClassifier(tracer trace.Tracer, fetcher imageFetcher) *HeuristicChartClassifier {
	return &HeuristicChartClassifier{tracer: tracer, fetcher: fetcher}
}

func (c *HeuristicChartClassifier) Classify(ctx context.Context, imageURL string) domain.MediaTag {
	ctx, span := c.tracer.Start(ctx, "classify.chart-image")
	defer span.End()

	body := c.fetcher.Text(ctx, fetch.Request{URL: imageURL})
	if body == "" {
		return domain.MediaOther
	}

	img, _, err := image.Decode(bytes.NewReader([]byte(body)))
	if err != nil {
		log.Printf("chart classifier: decode %s: %v", imageURL, err)
		return domain.MediaOther
	}

	tag := classifyImage(img)
	span.SetAttributes(attribute.String("media.tag", string(tag)))
	return tag
}

const (
	sampleGrid       = 96
	paletteThreshold = 350
	runThreshold     = 0.55
)

// classifyImage samples the image on a fixed grid, quantizes each channel to
// 4 bits, and tags the image as a chart when the quantized palette is small
// and at least one sampled row or column is dominated by a single colour run.
func classifyImage(img image.Image) domain.MediaTag {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 8 || h < 8 {
		return domain.MediaOther
	}

	cols, rows := sampleGrid, sampleGrid
	if w < cols {
		cols = w
	}
	if h < rows {
		rows = h
	}

	grid := make([][]uint16, rows)
	palette := make(map[uint16]struct{})
	for y := 0; y < rows; y++ {
		grid[y] = make([]uint16, cols)
		for x := 0; x < cols; x++ {
			px := bounds.Min.X + x*w/cols
			py := bounds.Min.Y + y*h/rows
			q := quantize(img.At(px, py).RGBA())
			grid[y][x] = q
			palette[q] = struct{}{}
		}
	}

	if len(palette) > paletteThreshold {
		return domain.MediaOther
	}
	if maxRunFraction(grid, cols, rows) < runThreshold {
		return domain.MediaOther
	}
	return domain.MediaChart
}

func quantize(r, g, b, _ uint32) uint16 {
	return uint16(r>>12)<<8 | uint16(g>>12)<<4 | uint16(b>>12)
}

// maxRunFraction finds the longest same-colour run across all sampled rows
// and columns, as a fraction of the line length. Axes and gridlines in a
// rendered chart produce runs near 1.0.
func maxRunFraction(grid [][]uint16, cols, rows int) float64 {
	best := 0.0
	for y := 0; y < rows; y++ {
		run, longest := 1, 1
		for x := 1; x < cols; x++ {
			if grid[y][x] == grid[y][x-1] {
				run++
			} else {
				run = 1
			}
			if run > longest {
				longest = run
			}
		}
		if f := float64(longest) / float64(cols); f > best {
			best = f
		}
	}
	for x := 0; x < cols; x++ {
		run, longest := 1, 1
		for y := 1; y < rows; y++ {
			if grid[y][x] == grid[y-1][x] {
				run++
			} else {
				run = 1
			}
			if run > longest {
				longest = run
			}
		}
		if f := float64(longest) / float64(rows); f > best {
			best = f
		}
	}
	return best
}
