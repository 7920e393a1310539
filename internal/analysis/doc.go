// Package analysis characterizes recorded series: summary statistics and
// the spectrum of an oscillation.
//
// A recorded chain tip height, for example, reveals the dominant swing
// frequency of the chain:
//
//	power := analysis.Spectrum(frames.Column("p10_y"), 60)
//	f := power.Dominant()
package analysis
