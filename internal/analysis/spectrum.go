package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum holds one-sided amplitudes at Freqs (Hz).
type PowerSpectrum struct {
	Freqs      []float64
	Amplitudes []float64
}

// Spectrum transforms a uniformly sampled series after removing its mean.
func Spectrum(series []float64, sampleRate float64) PowerSpectrum {
	n := len(series)
	if n < 2 {
		return PowerSpectrum{}
	}
	centered := make([]float64, n)
	copy(centered, series)
	floats.AddConst(-stat.Mean(series, nil), centered)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, centered)

	ps := PowerSpectrum{
		Freqs:      make([]float64, len(coeffs)),
		Amplitudes: make([]float64, len(coeffs)),
	}
	for i, c := range coeffs {
		ps.Freqs[i] = fft.Freq(i) * sampleRate
		ps.Amplitudes[i] = cmplx.Abs(c) / float64(n)
	}
	return ps
}

// Dominant returns the frequency with the largest amplitude, excluding DC.
func (p PowerSpectrum) Dominant() float64 {
	if len(p.Amplitudes) < 2 {
		return 0
	}
	return p.Freqs[1+floats.MaxIdx(p.Amplitudes[1:])]
}

// Summary is the descriptive statistics of a series.
type Summary struct {
	Min, Max   float64
	Mean, Std  float64
	FinalValue float64
}

func Describe(series []float64) Summary {
	if len(series) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(series, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Summary{
		Min:        floats.Min(series),
		Max:        floats.Max(series),
		Mean:       mean,
		Std:        std,
		FinalValue: series[len(series)-1],
	}
}
