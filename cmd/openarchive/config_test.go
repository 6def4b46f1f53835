package main

import (
	"testing"

	"github.com/openarchive/openarchive/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestEngineConfigFromCfg_CarriesExpandValIntoPoolBlock(t *testing.T) {
	cfg := config.NewDefault()
	cfg.ExpandVal = 64

	ecfg := engineConfigFromCfg(cfg)
	assert.True(t, ecfg.EnableFast)
	assert.Equal(t, 64, ecfg.PoolInitialBlock)
}
