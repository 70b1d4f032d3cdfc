package policy

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// The analysis-tier modules below are not passthroughs to host libraries:
// every member is individually implemented and reviewed, so the reachable
// surface is exactly what is listed here.

func mathModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "math",
		Members: starlark.StringDict{
			"sqrt":  unaryFn("math.sqrt", math.Sqrt),
			"log":   unaryFn("math.log", math.Log),
			"exp":   unaryFn("math.exp", math.Exp),
			"floor": unaryFn("math.floor", math.Floor),
			"ceil":  unaryFn("math.ceil", math.Ceil),
			"fabs":  unaryFn("math.fabs", math.Abs),
			"pow":   starlark.NewBuiltin("math.pow", powFn),
			"pi":    starlark.Float(math.Pi),
			"e":     starlark.Float(math.E),
		},
	}
}

func statsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "stats",
		Members: starlark.StringDict{
			"mean":       seriesToScalarFn("stats.mean", mean),
			"median":     seriesToScalarFn("stats.median", median),
			"stdev":      seriesToScalarFn("stats.stdev", stdev),
			"variance":   seriesToScalarFn("stats.variance", variance),
			"sum":        seriesToScalarFn("stats.sum", sum),
			"percentile": starlark.NewBuiltin("stats.percentile", percentileFn),
		},
	}
}

func taModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "ta",
		Members: starlark.StringDict{
			"sma":     rollingFn("ta.sma", sma),
			"ema":     rollingFn("ta.ema", ema),
			"rsi":     rollingFn("ta.rsi", rsi),
			"highest": rollingFn("ta.highest", rollingMax),
			"lowest":  rollingFn("ta.lowest", rollingMin),
			"change":  starlark.NewBuiltin("ta.change", changeFn),
		},
	}
}

func unaryFn(name string, fn func(float64) float64) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x float64
		if err := starlark.UnpackArgs(name, args, kwargs, "x", &x); err != nil {
			return nil, err
		}
		return starlark.Float(fn(x)), nil
	})
}

func powFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y float64
	if err := starlark.UnpackArgs("math.pow", args, kwargs, "x", &x, "y", &y); err != nil {
		return nil, err
	}
	return starlark.Float(math.Pow(x, y)), nil
}

func seriesToScalarFn(name string, fn func([]float64) (float64, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var values starlark.Value
		if err := starlark.UnpackArgs(name, args, kwargs, "values", &values); err != nil {
			return nil, err
		}
		series, err := floatSlice(name, values)
		if err != nil {
			return nil, err
		}
		out, err := fn(series)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return starlark.Float(out), nil
	})
}

func rollingFn(name string, fn func([]float64, int) ([]float64, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var values starlark.Value
		var period int
		if err := starlark.UnpackArgs(name, args, kwargs, "values", &values, "period", &period); err != nil {
			return nil, err
		}
		series, err := floatSlice(name, values)
		if err != nil {
			return nil, err
		}
		if period <= 0 {
			return nil, fmt.Errorf("%s: period must be positive, got %d", name, period)
		}
		out, err := fn(series, period)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return floatList(out), nil
	})
}

func changeFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Value
	lag := 1
	if err := starlark.UnpackArgs("ta.change", args, kwargs, "values", &values, "lag?", &lag); err != nil {
		return nil, err
	}
	series, err := floatSlice("ta.change", values)
	if err != nil {
		return nil, err
	}
	if lag <= 0 {
		return nil, fmt.Errorf("ta.change: lag must be positive, got %d", lag)
	}
	out := nanSeries(len(series))
	for i := lag; i < len(series); i++ {
		out[i] = series[i] - series[i-lag]
	}
	return floatList(out), nil
}

func mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("empty series")
	}
	s, _ := sum(values)
	return s / float64(len(values)), nil
}

func median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("empty series")
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, nil
	}
	return sorted[mid], nil
}

func variance(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, fmt.Errorf("need at least two samples")
	}
	m, _ := mean(values)
	var acc float64
	for _, v := range values {
		d := v - m
		acc += d * d
	}
	return acc / float64(len(values)-1), nil
}

func stdev(values []float64) (float64, error) {
	v, err := variance(values)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

func sum(values []float64) (float64, error) {
	var acc float64
	for _, v := range values {
		acc += v
	}
	return acc, nil
}

func percentileFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Value
	var p float64
	if err := starlark.UnpackArgs("stats.percentile", args, kwargs, "values", &values, "p", &p); err != nil {
		return nil, err
	}
	series, err := floatSlice("stats.percentile", values)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("stats.percentile: empty series")
	}
	if p < 0 || p > 100 {
		return nil, fmt.Errorf("stats.percentile: p must be in [0, 100], got %g", p)
	}
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	// Linear interpolation between closest ranks.
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return starlark.Float(sorted[lo]), nil
	}
	frac := rank - float64(lo)
	return starlark.Float(sorted[lo]*(1-frac) + sorted[hi]*frac), nil
}

// nanSeries returns n NaN slots; positions a rolling computation fills in
// stay NaN through the warmup period and render as None.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func sma(values []float64, period int) ([]float64, error) {
	out := nanSeries(len(values))
	if len(values) < period {
		return out, nil
	}
	var window float64
	for i, v := range values {
		window += v
		if i >= period {
			window -= values[i-period]
		}
		if i >= period-1 {
			out[i] = window / float64(period)
		}
	}
	return out, nil
}

func ema(values []float64, period int) ([]float64, error) {
	out := nanSeries(len(values))
	if len(values) < period {
		return out, nil
	}
	// Seed with the SMA of the first period, then apply the usual
	// 2/(period+1) smoothing.
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	alpha := 2 / (float64(period) + 1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out, nil
}

func rsi(values []float64, period int) ([]float64, error) {
	out := nanSeries(len(values))
	if len(values) <= period {
		return out, nil
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func rollingMax(values []float64, period int) ([]float64, error) {
	return rollingExtreme(values, period, math.Max), nil
}

func rollingMin(values []float64, period int) ([]float64, error) {
	return rollingExtreme(values, period, math.Min), nil
}

func rollingExtreme(values []float64, period int, pick func(float64, float64) float64) []float64 {
	out := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		ext := values[i-period+1]
		for _, v := range values[i-period+2 : i+1] {
			ext = pick(ext, v)
		}
		out[i] = ext
	}
	return out
}
