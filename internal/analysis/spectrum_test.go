package analysis

import (
	"math"
	"testing"
)

func TestSpectrumFindsDominantFrequency(t *testing.T) {
	const rate = 60.0
	tests := []struct {
		name string
		freq float64
		n    int
	}{
		{"2Hz", 2, 600},
		{"5Hz odd length", 5, 363},
		{"0.5Hz", 0.5, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := make([]float64, tt.n)
			for i := range series {
				series[i] = 3 + math.Sin(2*math.Pi*tt.freq*float64(i)/rate)
			}
			power := Spectrum(series, rate)
			resolution := rate / float64(tt.n)
			if got := power.Dominant(); math.Abs(got-tt.freq) > resolution {
				t.Errorf("dominant %v Hz, want %v", got, tt.freq)
			}
			if power.Amplitudes[0] > 1e-9 {
				t.Errorf("mean not removed: DC amplitude %v", power.Amplitudes[0])
			}
		})
	}
}

func TestSpectrumShortSeries(t *testing.T) {
	if s := Spectrum([]float64{1}, 60); len(s.Freqs) != 0 || s.Dominant() != 0 {
		t.Errorf("expected empty spectrum, got %+v", s)
	}
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{1, 2, 3, 4})
	if s.Min != 1 || s.Max != 4 || s.Mean != 2.5 || s.FinalValue != 4 {
		t.Errorf("unexpected summary %+v", s)
	}
	if want := math.Sqrt(5.0 / 3); math.Abs(s.Std-want) > 1e-12 {
		t.Errorf("std %v, want %v", s.Std, want)
	}
	if (Describe(nil) != Summary{}) {
		t.Error("expected zero summary for empty series")
	}
	if Describe([]float64{7}).Std != 0 {
		t.Error("single sample std should be 0")
	}
}
