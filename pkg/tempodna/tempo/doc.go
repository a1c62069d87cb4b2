// Package tempo estimates the tempo of a mono waveform.
//
// The pipeline runs strictly forward:
//
//	waveform -> frames -> mel spectra -> onset envelope -> {tempo candidates, beats} -> BPM
//
// Spectral frames are computed concurrently in bounded batches. Onset
// detection and beat tracking run sequentially in frame order, so results
// are deterministic for identical input and Config.
package tempo
