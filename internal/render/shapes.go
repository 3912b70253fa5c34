package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
)

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	radius = max(0, min(radius, rect.Dx()/2, rect.Dy()/2))
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	// a cross of two rectangles plus four quarter discs, without overlap so
	// translucent fills stay even
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)

	r2 := radius * radius
	corners := [4]struct {
		cx, cy int
		area   image.Rectangle
	}{
		{rect.Min.X + radius, rect.Min.Y + radius, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+radius, rect.Min.Y+radius)},
		{rect.Max.X - radius - 1, rect.Min.Y + radius, image.Rect(rect.Max.X-radius, rect.Min.Y, rect.Max.X, rect.Min.Y+radius)},
		{rect.Min.X + radius, rect.Max.Y - radius - 1, image.Rect(rect.Min.X, rect.Max.Y-radius, rect.Min.X+radius, rect.Max.Y)},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1, image.Rect(rect.Max.X-radius, rect.Max.Y-radius, rect.Max.X, rect.Max.Y)},
	}
	for _, c := range corners {
		for y := c.area.Min.Y; y < c.area.Max.Y; y++ {
			for x := c.area.Min.X; x < c.area.Max.X; x++ {
				dx, dy := x-c.cx, y-c.cy
				if dx*dx+dy*dy <= r2 {
					blendPixel(img, x, y, clr)
				}
			}
		}
	}
}

// blendPixel composites clr over the pixel at (x, y). image.RGBA holds
// premultiplied values, so this is plain source-over.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	mix := func(s uint32, d uint8) uint8 {
		return uint8((s + uint32(d)*0x101*inv/0xffff) >> 8)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, dst.R),
		G: mix(sg, dst.G),
		B: mix(sb, dst.B),
		A: mix(sa, dst.A),
	})
}
