package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns the one-sided amplitude spectrum of signal
// sampled every dt, with its mean removed, and the frequency of each
// bin in Hz.
func PowerSpectrum(signal []float64, dt float64) (freqs, amplitude []float64) {
	n := len(signal)
	if n < 2 || dt <= 0 {
		return nil, nil
	}
	mean := stat.Mean(signal, nil)
	centered := make([]float64, n)
	for i, v := range signal {
		centered[i] = v - mean
	}
	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)
	freqs = make([]float64, len(coeff))
	amplitude = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) / dt
		amplitude[i] = 2 * cmplx.Abs(c) / float64(n)
	}
	return freqs, amplitude
}

// DominantFrequency is the non-zero frequency with the largest
// amplitude. A constant signal returns zeros.
func DominantFrequency(signal []float64, dt float64) (freq, amplitude float64) {
	freqs, amp := PowerSpectrum(signal, dt)
	for i := 1; i < len(amp); i++ {
		if amp[i] > amplitude {
			freq, amplitude = freqs[i], amp[i]
		}
	}
	if amplitude < 1e-12 {
		return 0, 0
	}
	return freq, amplitude
}
