package raster

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/gographics/imagick.v2/imagick"
)

const DefaultDPI = 300

var initOnce sync.Once

// ImagickRasterizer renders PDF pages to PNG through ImageMagick (Ghostscript delegate).
type ImagickRasterizer struct {
	dpi    float64
	logger zerolog.Logger
}

func NewImagickRasterizer(dpi uint, logger zerolog.Logger) *ImagickRasterizer {
	initOnce.Do(imagick.Initialize)
	if dpi == 0 {
		dpi = DefaultDPI
	}
	return &ImagickRasterizer{
		dpi:    float64(dpi),
		logger: logger,
	}
}

// Terminate releases ImageMagick; call once on shutdown.
func Terminate() {
	imagick.Terminate()
}

func (r *ImagickRasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	// Разрешение задаётся до чтения, иначе страницы растеризуются в 72 DPI
	if err := mw.SetResolution(r.dpi, r.dpi); err != nil {
		return nil, fmt.Errorf("failed to set resolution: %w", err)
	}
	if err := mw.ReadImageBlob(pdf); err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	count := int(mw.GetNumberImages())
	pages := make([][]byte, 0, count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mw.SetIteratorIndex(i)
		page, err := r.renderPage(mw.GetImage())
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		pages = append(pages, page)
	}

	r.logger.Debug().Int("pages", count).Float64("dpi", r.dpi).Msg("PDF rasterized")
	return pages, nil
}

func (r *ImagickRasterizer) renderPage(page *imagick.MagickWand) ([]byte, error) {
	defer page.Destroy()

	if err := page.SetImageAlphaChannel(imagick.ALPHA_CHANNEL_FLATTEN); err != nil {
		return nil, err
	}
	if err := page.SetImageFormat("png"); err != nil {
		return nil, err
	}
	return page.GetImageBlob(), nil
}
