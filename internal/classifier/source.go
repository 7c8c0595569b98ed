package classifier

import (
	"context"

	"github.com/hyperjump/mailsift/internal/config"
	"github.com/hyperjump/mailsift/internal/nn"
)

// ModelSource constructs the network during Load.
type ModelSource func(ctx context.Context) (*nn.Sequential, error)

// DefaultSeed seeds demo weights when no source is configured.
const DefaultSeed uint64 = 42

// DemoModel builds the spam network from seeded demo weights.
func DemoModel(seed uint64) ModelSource {
	return func(ctx context.Context) (*nn.Sequential, error) {
		return nn.NewSpamNet(nn.DemoWeights(seed))
	}
}

// WeightsFile builds the spam network from a JSON weight file.
func WeightsFile(path string) ModelSource {
	return func(ctx context.Context) (*nn.Sequential, error) {
		w, err := nn.LoadWeights(path)
		if err != nil {
			return nil, err
		}
		return nn.NewSpamNet(w)
	}
}

// FixedWeights builds the spam network from w on every load.
func FixedWeights(w *nn.Weights) ModelSource {
	return func(ctx context.Context) (*nn.Sequential, error) {
		return nn.NewSpamNet(w)
	}
}

// SourceFor picks the weight file when configured, otherwise demo weights.
func SourceFor(cfg *config.ClassifierConfig) ModelSource {
	if cfg.WeightsPath != "" {
		return WeightsFile(cfg.WeightsPath)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	return DemoModel(seed)
}
