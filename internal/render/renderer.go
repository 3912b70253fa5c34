package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/triarii/internal/triarii"
)

// Options decorate a rendered board.
type Options struct {
	Selected triarii.Selection
	Header   string
	// Status replaces the computed turn line when set.
	Status string
	// EndzoneTarget is shown next to the endzone counts; zero means the
	// default policy target.
	EndzoneTarget int
}

type Renderer interface {
	RenderPNG(ctx context.Context, s triarii.GameState, opts Options) ([]byte, error)
}

type svgRenderer struct{}

func New() Renderer { return &svgRenderer{} }

const (
	cellSize    = 72
	boardPixels = cellSize * triarii.Size
	sideMargin  = 36
	topMargin   = 16
	headerH     = 40
	stripH      = 40
	gap         = 10
	labelBand   = 24
	panelRadius = 10
	discInset   = 6
	outlineW    = 4
)

var (
	lightCell      = color.RGBA{221, 205, 176, 255}
	darkCell       = color.RGBA{176, 146, 112, 255}
	backgroundFill = color.RGBA{38, 41, 56, 255}
	headerFill     = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	whiteStripFill = color.NRGBA{R: 238, G: 232, B: 220, A: 255}
	blackStripFill = color.NRGBA{R: 22, G: 21, B: 20, A: 255}
	selectionColor = color.NRGBA{R: 255, G: 206, B: 64, A: 230}
	labelPanelFill = color.NRGBA{R: 20, G: 22, B: 32, A: 200}
	textLight      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textDark       = color.NRGBA{R: 30, G: 28, B: 26, A: 255}
	coordText      = color.NRGBA{R: 150, G: 160, B: 190, A: 255}
)

type layout struct {
	header   image.Rectangle
	topStrip image.Rectangle
	board    image.Rectangle
	botStrip image.Rectangle
	labelY   int
	size     image.Point
}

func computeLayout() layout {
	w := boardPixels + sideMargin*2
	y := topMargin
	var l layout
	l.header = image.Rect(sideMargin, y, sideMargin+boardPixels, y+headerH)
	y += headerH + gap
	l.topStrip = image.Rect(sideMargin, y, sideMargin+boardPixels, y+stripH)
	y += stripH + gap
	l.board = image.Rect(sideMargin, y, sideMargin+boardPixels, y+boardPixels)
	y += boardPixels + gap
	l.botStrip = image.Rect(sideMargin, y, sideMargin+boardPixels, y+stripH)
	y += stripH
	l.labelY = y + labelBand/2
	l.size = image.Pt(w, y+labelBand)
	return l
}

func (r *svgRenderer) RenderPNG(ctx context.Context, s triarii.GameState, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l := computeLayout()
	img := image.NewRGBA(image.Rectangle{Max: l.size})
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundFill), image.Point{}, imagedraw.Src)

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}

	drawHeader(img, drawer, l.header, opts, s)
	drawEndzones(img, drawer, l, s, opts.EndzoneTarget)
	drawCells(img, l.board.Min)
	if err := drawStacks(ctx, img, drawer, s.Board, l.board.Min); err != nil {
		return nil, err
	}
	if opts.Selected.Active && opts.Selected.Cell.OnBoard() {
		drawOutline(img, cellRect(opts.Selected.Cell, l.board.Min), outlineW, selectionColor)
	}
	drawCoordinates(drawer, l)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// TurnLine describes whose turn it is, with the unstacking budget once the
// turn has started.
func TurnLine(s triarii.GameState) string {
	side := "White"
	if !s.WhiteToMove {
		side = "Black"
	}
	if s.Acted() {
		return fmt.Sprintf("%s to move, %d left", side, s.PiecesRemaining)
	}
	return side + " to move"
}

func drawHeader(img *image.RGBA, d *font.Drawer, rect image.Rectangle, opts Options, s triarii.GameState) {
	title := strings.TrimSpace(opts.Header)
	if title == "" {
		title = "Triarii"
	}
	status := strings.TrimSpace(opts.Status)
	if status == "" {
		status = TurnLine(s)
	}
	drawRoundedPanel(img, rect, panelRadius, headerFill)

	half := rect.Dx() / 2
	left := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+half, rect.Max.Y)
	right := image.Rect(rect.Min.X+half, rect.Min.Y, rect.Max.X, rect.Max.Y)
	drawCenteredString(d, left, truncateWithEllipsis(d.Face, title, left.Dx()-16), textLight)
	drawCenteredString(d, right, truncateWithEllipsis(d.Face, status, right.Dx()-16), textLight)
}

// White scores past row 0, at the top of the image; black past row 5.
func drawEndzones(img *image.RGBA, d *font.Drawer, l layout, s triarii.GameState, target int) {
	if target <= 0 {
		target = triarii.DefaultPolicy().EndzoneTarget
	}
	drawRoundedPanel(img, l.topStrip, panelRadius, whiteStripFill)
	drawRoundedPanel(img, l.botStrip, panelRadius, blackStripFill)
	drawCenteredString(d, l.topStrip, fmt.Sprintf("WHITE ENDZONE %d/%d", s.WhiteInEndzone, target), textDark)
	drawCenteredString(d, l.botStrip, fmt.Sprintf("BLACK ENDZONE %d/%d", s.BlackInEndzone, target), textLight)
}

func drawCells(dst imagedraw.Image, origin image.Point) {
	for row := 0; row < triarii.Size; row++ {
		for col := 0; col < triarii.Size; col++ {
			clr := lightCell
			if (row+col)%2 == 1 {
				clr = darkCell
			}
			rect := cellRect(triarii.Coord{Row: row, Col: col}, origin)
			imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawStacks(ctx context.Context, img *image.RGBA, d *font.Drawer, b triarii.Board, origin image.Point) error {
	size := cellSize - discInset*2
	for row := 0; row < triarii.Size; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for col := 0; col < triarii.Size; col++ {
			at := triarii.Coord{Row: row, Col: col}
			sq := b.At(at)
			holder, ok := sq.Owner()
			if !ok {
				continue
			}
			pinned := sq.Pin != triarii.PinNone
			disc, err := discImage(holder, pinned, size)
			if err != nil {
				return err
			}
			rect := cellRect(at, origin)
			discRect := image.Rect(rect.Min.X+discInset, rect.Min.Y+discInset, rect.Max.X-discInset, rect.Max.Y-discInset)
			imagedraw.Draw(img, discRect, disc, image.Point{}, imagedraw.Over)
			drawCountLabel(img, d, rect, stackLabel(sq, holder))
		}
	}
	return nil
}

// stackLabel is the holder's count, followed by the pinned count on pinned
// squares ("6/4").
func stackLabel(sq triarii.Square, holder triarii.Color) string {
	label := strconv.Itoa(sq.Count(holder))
	if sq.Pin != triarii.PinNone {
		label += "/" + strconv.Itoa(sq.Count(holder.Opponent()))
	}
	return label
}

func drawCountLabel(img *image.RGBA, d *font.Drawer, cell image.Rectangle, label string) {
	w := d.MeasureString(label).Round() + 10
	h := 16
	cx := cell.Min.X + cell.Dx()/2
	panel := image.Rect(cx-w/2, cell.Max.Y-h-2, cx+w/2, cell.Max.Y-2)
	drawRoundedPanel(img, panel, 6, labelPanelFill)
	drawCenteredString(d, panel, label, textLight)
}

func drawOutline(img *image.RGBA, rect image.Rectangle, width int, clr color.Color) {
	fill := image.NewUniform(clr)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width),
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+width, rect.Min.X+width, rect.Max.Y-width),
		image.Rect(rect.Max.X-width, rect.Min.Y+width, rect.Max.X, rect.Max.Y-width),
	}
	for _, e := range edges {
		imagedraw.Draw(img, e, fill, image.Point{}, imagedraw.Over)
	}
}

func drawCoordinates(d *font.Drawer, l layout) {
	d.Src = image.NewUniform(coordText)
	ascent := d.Face.Metrics().Ascent.Ceil()
	for i := 0; i < triarii.Size; i++ {
		center := l.board.Min.Y + i*cellSize + cellSize/2
		drawCenteredText(d, strconv.Itoa(i), sideMargin/2, center+ascent/2)
		colCenter := l.board.Min.X + i*cellSize + cellSize/2
		drawCenteredText(d, strconv.Itoa(i), colCenter, l.labelY+ascent/2)
	}
}

func cellRect(at triarii.Coord, origin image.Point) image.Rectangle {
	x := origin.X + at.Col*cellSize
	y := origin.Y + at.Row*cellSize
	return image.Rect(x, y, x+cellSize, y+cellSize)
}

func drawCenteredString(d *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if d == nil || text == "" {
		return
	}
	m := d.Face.Metrics()
	width := d.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Src = image.NewUniform(clr)
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

func drawCenteredText(d *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	text = strings.TrimSpace(text)
	if text == "" || maxWidth <= 0 || face == nil {
		return text
	}
	d := font.Drawer{Face: face}
	if d.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + "..."; d.MeasureString(c).Round() <= maxWidth {
			return c
		}
	}
	return ""
}
