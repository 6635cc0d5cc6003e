package services

import (
	"bytes"
	"fmt"
	"image/color"
	"math/rand"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/yungbote/relaydesk-backend/internal/logger"
)

const (
	challengeImageWidth  = 200
	challengeImageHeight = 80
)

type imageRenderer struct {
	log  *logger.Logger
	face font.Face
}

func newImageRenderer(log *logger.Logger) *imageRenderer {
	fontPath := os.Getenv("CHALLENGE_FONT_PATH")
	if fontPath == "" {
		fontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	}
	face, err := loadFontFace(fontPath, 40)
	if err != nil {
		log.Warn("challenge font unavailable, using builtin face", "path", fontPath, "error", err)
		face = basicfont.Face7x13
	}
	return &imageRenderer{log: log, face: face}
}

// CodeImage renders the digit code onto a noisy PNG the way the
// verification prompt expects it: jittered glyph positions, dark
// per-glyph colors, light noise lines and specks over white.
func (r *imageRenderer) CodeImage(code string) ([]byte, error) {
	dc := gg.NewContext(challengeImageWidth, challengeImageHeight)

	dc.SetColor(color.White)
	dc.DrawRectangle(0, 0, challengeImageWidth, challengeImageHeight)
	dc.Fill()

	dc.SetFontFace(r.face)
	x := 20.0
	for _, ch := range code {
		y := float64(rand.Intn(11) + 45)
		dc.SetColor(color.NRGBA{
			R: uint8(rand.Intn(101)),
			G: uint8(rand.Intn(101)),
			B: uint8(rand.Intn(101)),
			A: 255,
		})
		dc.DrawString(string(ch), x, y)
		x += 40
	}

	dc.SetLineWidth(2)
	for i := 0; i < 5; i++ {
		dc.SetColor(noiseColor())
		dc.DrawLine(
			float64(rand.Intn(challengeImageWidth)), float64(rand.Intn(challengeImageHeight)),
			float64(rand.Intn(challengeImageWidth)), float64(rand.Intn(challengeImageHeight)),
		)
		dc.Stroke()
	}

	for i := 0; i < 100; i++ {
		dc.SetColor(noiseColor())
		dc.DrawPoint(float64(rand.Intn(challengeImageWidth)), float64(rand.Intn(challengeImageHeight)), 1)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func noiseColor() color.NRGBA {
	return color.NRGBA{
		R: uint8(rand.Intn(101) + 100),
		G: uint8(rand.Intn(101) + 100),
		B: uint8(rand.Intn(101) + 100),
		A: 255,
	}
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
