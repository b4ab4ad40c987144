package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error. Errors always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	errors := &levelFilterCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	rest := &levelFilterCore{Core: core, min: TraceLevel, max: zapcore.WarnLevel}
	return zapcore.NewTee(errors, zapcore.NewSamplerWithOptions(rest, cfg.Tick, cfg.Initial, cfg.Thereafter))
}

// levelFilterCore passes entries with min <= level <= max.
type levelFilterCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}
