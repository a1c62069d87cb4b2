//go:build js && wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorInsufficientSignal
	ErrorNoBeats
)

// estimateTempo analyses decoded audio in the browser.
// JS: estimateTempo(audioArray, sampleRate, channels[, {minBpm, maxBpm, hopSize}])
// Returns: {error: number, data: object | string}
func estimateTempo(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}

	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float64Array")
	}
	if sampleRateJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a number")
	}
	if channelsJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "channels must be a number")
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()
	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	length := audioDataJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}

	samples := make([]float64, length)
	for i := range length {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = val.Float()
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	cfg := tempo.DefaultConfig()
	cfg.Workers = 1
	if len(args) > 3 && args[3].Type() == js.TypeObject {
		applyOptions(&cfg, args[3])
	}

	res, err := tempo.Estimate(context.Background(), samples, sampleRate, cfg)
	if err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}

	beats := js.Global().Get("Array").New(len(res.BeatTimes))
	for i, t := range res.BeatTimes {
		beats.SetIndex(i, t)
	}

	onsets := js.Global().Get("Array").New(len(res.OnsetTimes))
	for i, t := range res.OnsetTimes {
		onsets.SetIndex(i, t)
	}

	data := js.Global().Get("Object").New()
	data.Set("bpm", res.BPM)
	data.Set("beatTimes", beats)
	data.Set("onsetTimes", onsets)
	data.Set("trackerBpm", res.TrackerBPM)
	data.Set("estimatorBpm", res.EstimatorBPM)
	data.Set("octaveMismatch", res.OctaveMismatch)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func applyOptions(cfg *tempo.Config, opts js.Value) {
	if v := opts.Get("minBpm"); v.Type() == js.TypeNumber {
		cfg.MinBPM = v.Float()
	}
	if v := opts.Get("maxBpm"); v.Type() == js.TypeNumber {
		cfg.MaxBPM = v.Float()
	}
	if v := opts.Get("hopSize"); v.Type() == js.TypeNumber {
		cfg.HopSize = v.Int()
	}
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, tempo.ErrInvalidParameters):
		return ErrorInvalidArgs
	case errors.Is(err, tempo.ErrInsufficientSignal):
		return ErrorInsufficientSignal
	case errors.Is(err, tempo.ErrNoBeatsFound):
		return ErrorNoBeats
	default:
		return ErrorProcessing
	}
}

func stereoToMono(stereo []float64) []float64 {
	n := len(stereo) / 2
	mono := make([]float64, n)
	for i := range n {
		mono[i] = (stereo[2*i] + stereo[2*i+1]) / 2
	}
	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}

	js.Global().Set("estimateTempo", js.FuncOf(estimateTempo))
	logf("log", "TempoDNA WASM: estimateTempo registered")

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "TempoDNA WASM: window object is undefined")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	}

	select {}
}
