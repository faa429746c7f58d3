package detection

import (
	"image"

	"github.com/ironsheep/crop-detect/internal/imaging"
)

// ColorSample is a sampled pixel and whether the segmenter would keep it.
type ColorSample struct {
	imaging.LabeledColorResult
	InRange bool `json:"in_range"`
}

// SampleColors reports the color of each point and tests it against the
// configured color range. With smoothed set the points are read from the
// preprocessed image, which is the image the segmenter actually thresholds.
func (s *Stages) SampleColors(img image.Image, points []imaging.LabeledPoint, smoothed bool) ([]ColorSample, error) {
	src := img
	if smoothed {
		out, err := s.Preprocess(img)
		if err != nil {
			return nil, err
		}
		src = out
	}

	results, err := imaging.SampleColorsMulti(src, points)
	if err != nil {
		return nil, err
	}

	samples := make([]ColorSample, len(results))
	for i, r := range results {
		hsv := r.Color.HSV
		samples[i] = ColorSample{
			LabeledColorResult: r,
			InRange:            s.cfg.ColorRange.Contains(hsv.H, hsv.S, hsv.V),
		}
	}
	return samples, nil
}
