package config

import (
	"log/slog"

	ctxengine "github.com/flemzord/ctxpack/internal/context"
)

// SlogLevel returns the configured level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Estimator builds the configured token estimator.
func (t TokenizerConfig) Estimator() (ctxengine.TokenEstimator, error) {
	if t.Kind == TokenizerTiktoken {
		est, err := ctxengine.NewTiktokenEstimator(t.Encoding)
		if err != nil {
			return nil, err
		}
		return est, nil
	}
	return ctxengine.NewCharEstimator(t.CharsPerToken), nil
}
