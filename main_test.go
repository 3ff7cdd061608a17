package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIFlagDefaultsDoNotOverrideConfig(t *testing.T) {
	cfg := config{Headless: false, JSONOut: true}

	fl := cliFlags{headless: true, jsonOut: false, set: map[string]bool{}}
	got := fl.apply(cfg)
	assert.False(t, got.Headless, "a flag default must not clobber the configured value")
	assert.True(t, got.JSONOut)

	fl.set = map[string]bool{"headless": true, "json": true}
	got = fl.apply(cfg)
	assert.True(t, got.Headless)
	assert.False(t, got.JSONOut)
}

func TestCLIOverrides(t *testing.T) {
	cfg := config{
		Keywords: []string{"scan centres"},
		Cities:   []string{"Delhi"},
		MaxPages: 2,
		Workers:  3,
		UseGMB:   true,
	}

	fl := cliFlags{
		keywords: "pathology labs, diagnostic centres",
		cities:   "Pune",
		maxPages: 5,
		workers:  8,
		noGMB:    true,
		set:      map[string]bool{},
	}
	got := fl.apply(cfg)

	assert.Equal(t, []string{"pathology labs", "diagnostic centres"}, got.Keywords)
	assert.Equal(t, []string{"Pune"}, got.Cities)
	assert.Equal(t, 5, got.MaxPages)
	assert.Equal(t, 8, got.Workers)
	assert.False(t, got.UseGMB)
}
