package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"cryptoDecisionEngine/internal/domain"
)

// botsFile is the layout of the bot definitions file.
type botsFile struct {
	Bots []*domain.BotContext `yaml:"bots"`
}

// LoadBots reads bot definitions from a YAML file. Unset timeframe, candle limit and
// confidence threshold come from base, everything else from the struct defaults.
func LoadBots(path string, base domain.BotConfig) ([]*domain.BotContext, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bots file: %w", err)
	}
	return ParseBots(b, base)
}

// ParseBots decodes, defaults and validates bot definitions.
func ParseBots(data []byte, base domain.BotConfig) ([]*domain.BotContext, error) {
	var f botsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bots file: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]bool, len(f.Bots))
	var errs []error
	for i, bot := range f.Bots {
		if bot == nil {
			errs = append(errs, fmt.Errorf("bot %d: empty definition", i))
			continue
		}
		if bot.Config.Timeframe == "" {
			bot.Config.Timeframe = base.Timeframe
		}
		if bot.Config.CandleLimit == 0 {
			bot.Config.CandleLimit = base.CandleLimit
		}
		if bot.Config.ConfidenceThreshold == 0 {
			bot.Config.ConfidenceThreshold = base.ConfidenceThreshold
		}
		if err := defaults.Set(bot); err != nil {
			errs = append(errs, fmt.Errorf("bot %d: defaults: %w", i, err))
			continue
		}
		if err := validate.Struct(bot); err != nil {
			errs = append(errs, fmt.Errorf("bot %d (%s): %w", i, bot.ID, err))
			continue
		}
		if seen[bot.ID] {
			errs = append(errs, fmt.Errorf("bot %d: duplicate id %q", i, bot.ID))
			continue
		}
		seen[bot.ID] = true
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid bot definitions: %w", errors.Join(errs...))
	}
	return f.Bots, nil
}
