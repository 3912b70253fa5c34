package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/triarii/internal/triarii"
)

// Stacks are drawn from a small SVG: an outer disc in the holder's colour
// and, on pinned squares, an inner disc in the pinned side's colour.
const discSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">
<circle cx="50" cy="50" r="40" fill="%s" stroke="%s" stroke-width="5"/>
%s</svg>`

const innerDiscSVG = `<circle cx="50" cy="50" r="20" fill="%s" stroke="%s" stroke-width="4"/>
`

type discStyle struct {
	fill   string
	stroke string
}

var discStyles = map[triarii.Color]discStyle{
	triarii.White: {fill: "#f4f1ea", stroke: "#5b5148"},
	triarii.Black: {fill: "#2a2725", stroke: "#0d0c0b"},
}

type discKey struct {
	holder triarii.Color
	pinned bool
	size   int
}

var (
	discCache   = map[discKey]image.Image{}
	discCacheMu sync.RWMutex
)

func discSource(holder triarii.Color, pinned bool) string {
	outer := discStyles[holder]
	var inner string
	if pinned {
		in := discStyles[holder.Opponent()]
		inner = fmt.Sprintf(innerDiscSVG, in.fill, in.stroke)
	}
	return fmt.Sprintf(discSVG, outer.fill, outer.stroke, inner)
}

// discImage rasterizes the disc for holder at size x size pixels.
func discImage(holder triarii.Color, pinned bool, size int) (image.Image, error) {
	key := discKey{holder: holder, pinned: pinned, size: size}

	discCacheMu.RLock()
	if img, ok := discCache[key]; ok {
		discCacheMu.RUnlock()
		return img, nil
	}
	discCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(strings.NewReader(discSource(holder, pinned)))
	if err != nil {
		return nil, fmt.Errorf("parse disc svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	discCacheMu.Lock()
	discCache[key] = img
	discCacheMu.Unlock()
	return img, nil
}
