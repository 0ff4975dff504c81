// this file contains a few small image processing utilities for previews
package camera

import (
	"image"
)

// MinMax returns the smallest and largest value in buf
func MinMax(buf []uint16) (min, max uint16) {
	if len(buf) == 0 {
		return 0, 0
	}
	min, max = buf[0], buf[0]
	for _, v := range buf[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Stretch8 maps a row major 16 bit frame linearly onto 8 bits, the darkest
// pixel to 0 and the brightest to 255.  A flat frame is all zero.
func Stretch8(buf []uint16, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	n := width * height
	if n > len(buf) {
		n = len(buf)
	}
	lo, hi := MinMax(buf[:n])
	span := uint32(hi) - uint32(lo)
	if span == 0 {
		return img
	}
	for i, v := range buf[:n] {
		img.Pix[i] = uint8((uint32(v-lo)*255 + span/2) / span)
	}
	return img
}
