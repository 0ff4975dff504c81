package imgrec

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/google/uuid"
	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// Checksum is the CRC-32 of the frame's pixels, big endian
func Checksum(buf []uint16) uint32 {
	b := make([]byte, 2*len(buf))
	for i, v := range buf {
		binary.BigEndian.PutUint16(b[2*i:], v)
	}
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, b)
	return crcTable.CRC32(c)
}

// FrameCards are the cards identifying one exposure
func FrameCards(id uuid.UUID, buf []uint16, start time.Time) []fitsio.Card {
	return []fitsio.Card{
		{Name: "EXPID", Value: id.String(), Comment: "exposure identifier"},
		{Name: "DATE-OBS", Value: start.UTC().Format("2006-01-02T15:04:05.000"), Comment: "exposure start (UTC)"},
		{Name: "DATACRC", Value: fmt.Sprintf("%08x", Checksum(buf)), Comment: "CRC-32 of the pixel data"},
	}
}

// WriteFits streams a cols x rows 16 bit frame to w as a FITS file
func WriteFits(w io.Writer, buf []uint16, cols, rows int, metadata []fitsio.Card) error {
	if cols <= 0 || rows <= 0 || len(buf) < cols*rows {
		return fmt.Errorf("cannot write a %dx%d frame from %d pixels", cols, rows, len(buf))
	}
	cards := make([]fitsio.Card, 0, len(metadata)+2)
	cards = append(cards, metadata...)
	cards = append(cards, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(16, []int{cols, rows})
	defer im.Close()
	if err = im.Header().Append(cards...); err != nil {
		return err
	}
	ints := make([]int16, cols*rows)
	for i, u := range buf[:cols*rows] {
		ints[i] = int16(int32(u) - 32768)
	}
	if err = im.Write(ints); err != nil {
		return err
	}
	return fits.Write(im)
}

// Save writes the frame to filename, replacing any file there
func Save(filename string, buf []uint16, cols, rows int, metadata ...fitsio.Card) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err = WriteFits(f, buf, cols, rows, metadata); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
