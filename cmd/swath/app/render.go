package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/vector"

	"github.com/roman-kulish/swath-footprint/internal/geodesy"
	"github.com/roman-kulish/swath-footprint/internal/swath"
)

const (
	dpi           = 120.0
	fontSize      = 9.0
	pixelsPerTick = 150.0
	tickHeight    = 5
	metersPerDeg  = geodesy.EarthRadius * math.Pi / 180

	defaultPreviewWidth  = 800
	defaultPreviewHeight = 600

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 40
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

var (
	defaultFillColor = color.NRGBA{R: 0x3b, G: 0x82, B: 0xc4, A: 0x80}
	defaultEdgeColor = color.RGBA{R: 0x1d, G: 0x3f, B: 0x72, A: 0xff}
)

// BorderConfig defines the sizes of white space around the footprint
type BorderConfig struct {
	Top    int // Space for the title
	Left   int
	Bottom int // Space for information bar
	Right  int
}

// PreviewConfig holds all configuration options for the footprint preview
type PreviewConfig struct {
	Width    int     // Drawing area width in pixels
	Height   int     // Drawing area height in pixels
	FontSize float64 // Font size in points

	FillColor color.Color
	EdgeColor color.Color

	BorderConfig BorderConfig
}

// TrackPoint is one platform position with its altitude above ground
type TrackPoint struct {
	geodesy.Coordinate
	AGL float64
}

// PreviewRenderer draws a footprint and the platform track onto an image.
// Track segments are coloured by altitude above ground.
type PreviewRenderer struct {
	config PreviewConfig
}

// NewPreviewRenderer creates a new preview renderer with the given configuration
func NewPreviewRenderer(config PreviewConfig) *PreviewRenderer {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultPreviewWidth
	}
	if config.Height == 0 {
		config.Height = defaultPreviewHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.FillColor == nil {
		config.FillColor = defaultFillColor
	}
	if config.EdgeColor == nil {
		config.EdgeColor = defaultEdgeColor
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &PreviewRenderer{config: config}
}

// Render creates an image of the footprint with annotations. Track holds the
// platform positions in sample order and may be empty.
func (r *PreviewRenderer) Render(fp *swath.Footprint, track []TrackPoint) (*image.RGBA, error) {
	if len(fp.Ring) == 0 {
		return nil, errors.New("nothing to render")
	}

	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width+b.Left+b.Right, r.config.Height+b.Top+b.Bottom))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+r.config.Width, b.Top+r.config.Height)
	proj := newProjection(fp, track, area)

	ring := make([][2]float32, len(fp.Ring))
	for i, v := range fp.Ring {
		ring[i] = proj.point(v.Latitude, v.Longitude)
	}

	z := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	fillPath(z, ring)
	z.Draw(img, img.Bounds(), image.NewUniform(r.config.FillColor), image.Point{})

	z.Reset(img.Bounds().Dx(), img.Bounds().Dy())
	for i := range ring {
		strokeSegment(z, ring[i], ring[(i+1)%len(ring)], 1.5)
	}
	z.Draw(img, img.Bounds(), image.NewUniform(r.config.EdgeColor), image.Point{})

	bounds := newHeightBounds(track)
	for i := 1; i < len(track); i++ {
		a, b := track[i-1], track[i]

		z.Reset(img.Bounds().Dx(), img.Bounds().Dy())
		strokeSegment(z, proj.point(a.Latitude, a.Longitude), proj.point(b.Latitude, b.Longitude), 1.5)
		z.Draw(img, img.Bounds(), image.NewUniform(heightColor((a.AGL+b.AGL)/2, bounds)), image.Point{})
	}

	ann, err := newAnnotator(annotatorConfig{
		FontSize: r.config.FontSize,
		Borders:  b,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, fp, proj); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// projection maps coordinates onto the drawing area with an equirectangular
// projection centred on the footprint, preserving the aspect ratio
type projection struct {
	minLon, maxLat float64
	lonScale       float64 // cos(latitude) at the centre
	pxPerDeg       float64
	offset         [2]float64
}

func newProjection(fp *swath.Footprint, track []TrackPoint, area image.Rectangle) projection {
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	extend := func(lat, lon float64) {
		minLon, maxLon = math.Min(minLon, lon), math.Max(maxLon, lon)
		minLat, maxLat = math.Min(minLat, lat), math.Max(maxLat, lat)
	}
	for _, v := range fp.Ring {
		extend(v.Latitude, v.Longitude)
	}
	for _, c := range track {
		extend(c.Latitude, c.Longitude)
	}

	lonScale := math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	width := math.Max((maxLon-minLon)*lonScale, 1e-9)
	height := math.Max(maxLat-minLat, 1e-9)
	pxPerDeg := math.Min(float64(area.Dx())/width, float64(area.Dy())/height)

	return projection{
		minLon:   minLon,
		maxLat:   maxLat,
		lonScale: lonScale,
		pxPerDeg: pxPerDeg,
		offset: [2]float64{
			float64(area.Min.X) + (float64(area.Dx())-width*pxPerDeg)/2,
			float64(area.Min.Y) + (float64(area.Dy())-height*pxPerDeg)/2,
		},
	}
}

func (p projection) point(lat, lon float64) [2]float32 {
	return [2]float32{
		float32(p.offset[0] + (lon-p.minLon)*p.lonScale*p.pxPerDeg),
		float32(p.offset[1] + (p.maxLat-lat)*p.pxPerDeg),
	}
}

// metersPerPixel returns the ground distance covered by one pixel
func (p projection) metersPerPixel() float64 {
	return metersPerDeg / p.pxPerDeg
}

func fillPath(z *vector.Rasterizer, points [][2]float32) {
	z.MoveTo(points[0][0], points[0][1])
	for _, pt := range points[1:] {
		z.LineTo(pt[0], pt[1])
	}
	z.ClosePath()
}

// strokeSegment adds a line of the given width as a thin quad
func strokeSegment(z *vector.Rasterizer, a, b [2]float32, width float32) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	fillPath(z, [][2]float32{
		{a[0] + nx, a[1] + ny},
		{b[0] + nx, b[1] + ny},
		{b[0] - nx, b[1] - ny},
		{a[0] - nx, a[1] - ny},
	})
}

// Internal annotator implementation
type annotatorConfig struct {
	FontSize float64
	Borders  BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, fp *swath.Footprint, proj projection) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawTitle(img, fp); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	if err := a.drawScaleBar(img, proj); err != nil {
		return fmt.Errorf("drawing scale bar: %w", err)
	}
	if err := a.drawInfoBar(img, fp); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() (height, descent int) {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round(), metrics.Descent.Round()
}

func (a *annotator) drawTitle(img *image.RGBA, fp *swath.Footprint) error {
	label := fp.Label
	if label == "" {
		label = "footprint"
	}

	fontHeight, descent := a.fontHeight()
	textY := (a.config.Borders.Top+fontHeight)/2 - descent

	_, err := a.context.DrawString(label, freetype.Pt(a.config.Borders.Left, textY))
	return err
}

func (a *annotator) drawScaleBar(img *image.RGBA, proj projection) error {
	step := calculateNiceDistanceStep(proj.metersPerPixel() * pixelsPerTick)
	length := int(math.Round(step / proj.metersPerPixel()))

	bounds := img.Bounds()
	x1 := bounds.Max.X - a.config.Borders.Right
	x0 := x1 - length
	y := bounds.Max.Y - a.config.Borders.Bottom - 2*tickHeight

	for x := x0; x <= x1; x++ {
		img.Set(x, y, color.Black)
	}
	for _, x := range []int{x0, x1} {
		for dy := -tickHeight; dy <= 0; dy++ {
			img.Set(x, y+dy, color.Black)
		}
	}

	label := humanize.SIWithDigits(step, 0, "m")
	width := font.MeasureString(a.fontFace, label).Round()
	_, descent := a.fontHeight()
	_, err := a.context.DrawString(label, freetype.Pt(x0-width-tickHeight*2, y+descent))
	return err
}

func (a *annotator) drawInfoBar(img *image.RGBA, fp *swath.Footprint) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Samples: %s", humanize.Comma(int64(len(fp.Left)))))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Elevation: %s m", humanize.FormatFloat("#,###.#", fp.Elevation)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("FOV: %s°", humanize.FormatFloat("#.##", fp.FOV)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Area: %s ha", humanize.FormatFloat("#,###.##", fp.Area()/1e4)))
	if fp.Smooth {
		sb.WriteString("; smoothed")
	}

	fontHeight, descent := a.fontHeight()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - descent

	_, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.Borders.Left, textY))
	if err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// calculateNiceDistanceStep returns the 1-2-5 series distance in meters
// closest to, but not below, target
func calculateNiceDistanceStep(target float64) float64 {
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return 1
	}

	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= target {
			return step
		}
	}
	return 10 * magnitude
}
