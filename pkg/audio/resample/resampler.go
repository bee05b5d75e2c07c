// ABOUTME: Linear resampler for converting mono int16 frames between sample rates
// ABOUTME: Used by the codec engine for 44.1 kHz <-> 16 kHz conversion
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	lastSample int16
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	if inputRate <= 0 {
		inputRate = 1
	}
	if outputRate <= 0 {
		outputRate = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
	}
}

// Resample converts one frame of input to the output rate.
// Output position i maps to input position i*inputRate/outputRate. When the
// right neighbour is missing the left sample is used; positions past the end
// of the input repeat the last sample of the previous call.
// Returns the number of samples written.
func (r *Resampler) Resample(input []int16, output []int16) int {
	n := r.OutputSamples(len(input))
	if n > len(output) {
		n = len(output)
	}

	in := int64(r.inputRate)
	out := int64(r.outputRate)

	for i := 0; i < n; i++ {
		pos := int64(i) * in
		idx := int(pos / out)
		frac := pos % out

		switch {
		case idx+1 < len(input):
			a := int64(input[idx])
			b := int64(input[idx+1])
			output[i] = int16((a*(out-frac) + b*frac) / out)
		case idx < len(input):
			output[i] = input[idx]
		default:
			output[i] = r.lastSample
		}
	}

	if len(input) > 0 {
		r.lastSample = input[len(input)-1]
	}

	return n
}

// Reset clears the carried sample
func (r *Resampler) Reset() {
	r.lastSample = 0
}

// LastSample returns the sample carried into the next call
func (r *Resampler) LastSample() int16 {
	return r.lastSample
}

// OutputSamples calculates how many output samples a frame of inputSamples produces
func (r *Resampler) OutputSamples(inputSamples int) int {
	return int(int64(inputSamples) * int64(r.outputRate) / int64(r.inputRate))
}

// InputSamples calculates how many input samples are needed to produce outputSamples.
// One extra sample is included so the last output position has a right neighbour.
func (r *Resampler) InputSamples(outputSamples int) int {
	return int(int64(outputSamples)*int64(r.inputRate)/int64(r.outputRate)) + 1
}
