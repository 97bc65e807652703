package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names for the thresholds named in the public
// configuration object.
const (
	EnvAutomatizationMs      = "NUMBERSENSE_AUTOMATIZATION_MS"
	EnvStructuredMs          = "NUMBERSENSE_STRUCTURED_MS"
	EnvDecompositionMs       = "NUMBERSENSE_DECOMPOSITION_MS"
	EnvCountingRateThreshold = "NUMBERSENSE_COUNTING_RATE_THRESHOLD"
	EnvMasteryThreshold      = "NUMBERSENSE_MASTERY_THRESHOLD"
	EnvMasterySampleMin      = "NUMBERSENSE_MASTERY_SAMPLE_MIN"
	EnvStreakForSupportDrop  = "NUMBERSENSE_STREAK_FOR_SUPPORT_DROP"
	EnvAutoRegression        = "NUMBERSENSE_AUTO_REGRESSION"
)

// ApplyEnv returns a copy of c with environment overrides applied.
// Unset variables leave the value untouched; malformed ones are errors.
func (c Engine) ApplyEnv() (Engine, error) {
	return c.applyLookup(os.LookupEnv)
}

func (c Engine) applyLookup(lookup func(string) (string, bool)) (Engine, error) {
	intVar := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	floatVar := func(name string, dst *float64) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = f
		return nil
	}
	boolVar := func(name string, dst *bool) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		return nil
	}

	out := c
	// Benchmarks is the only slice; copy it so the override never aliases c.
	out.Analysis.Benchmarks = append([]int(nil), c.Analysis.Benchmarks...)

	for _, err := range []error{
		intVar(EnvAutomatizationMs, &out.Analysis.AutomatizationMs),
		intVar(EnvStructuredMs, &out.Analysis.StructuredMs),
		intVar(EnvDecompositionMs, &out.Analysis.DecompositionMs),
		floatVar(EnvCountingRateThreshold, &out.Risk.CountingRateThreshold),
		floatVar(EnvMasteryThreshold, &out.Progression.MasteryThreshold),
		intVar(EnvMasterySampleMin, &out.Progression.MasterySampleMin),
		intVar(EnvStreakForSupportDrop, &out.Support.StreakForSupportDrop),
		boolVar(EnvAutoRegression, &out.Progression.AutoRegression),
	} {
		if err != nil {
			return Engine{}, fmt.Errorf("env override: %w", err)
		}
	}

	if err := out.Validate(); err != nil {
		return Engine{}, err
	}
	return out, nil
}
