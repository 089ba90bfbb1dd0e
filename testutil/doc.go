// Package testutil provides corpus fixtures for wikipack tests and
// benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Fixed Scenario
//
//	c := testutil.Scenario() // "ala blanca", "conejo blanco", "conejo negro"
//
// # Random Corpus
//
//	rng := testutil.NewRNG(seed)
//	c := rng.Corpus(1000, testutil.CorpusOptions{RedirectRate: 0.2})
//	wikipack.Build(ctx, store, c.Input("es"), wikipack.BuildConfig{})
package testutil
