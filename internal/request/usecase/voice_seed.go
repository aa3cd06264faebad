package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"

	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type voiceCatalog struct {
	Voices []requestdomain.Voice `yaml:"voices"`
}

// LoadVoiceCatalog reads voice definitions from a YAML file.
func LoadVoiceCatalog(path string) ([]requestdomain.Voice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice catalog: %w", err)
	}
	return ParseVoiceCatalog(data)
}

func ParseVoiceCatalog(data []byte) ([]requestdomain.Voice, error) {
	var catalog voiceCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}
	for i, v := range catalog.Voices {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		if name == "" {
			return nil, fmt.Errorf("voice %d has no name", i)
		}
		if strings.TrimSpace(v.Description) == "" {
			return nil, fmt.Errorf("voice %q has no description", name)
		}
		catalog.Voices[i].Name = name
		if catalog.Voices[i].Label == "" {
			catalog.Voices[i].Label = v.Name
		}
	}
	return catalog.Voices, nil
}

// SeedVoices upserts every voice by name.
func SeedVoices(ctx context.Context, repo repository.VoiceRepository, voices []requestdomain.Voice, logger *zap.Logger) error {
	for i := range voices {
		v := voices[i]
		if err := repo.Upsert(ctx, &v); err != nil {
			return fmt.Errorf("seed voice %q: %w", v.Name, err)
		}
	}
	logger.Info("Voice catalog seeded", zap.Int("voices", len(voices)))
	return nil
}
