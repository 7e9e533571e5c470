// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-digest/internal/archive"
	"github.com/pdiddy/arxiv-digest/internal/extract"
	"github.com/pdiddy/arxiv-digest/internal/filter"
	"github.com/pdiddy/arxiv-digest/internal/inference"
	"github.com/pdiddy/arxiv-digest/internal/pipeline"
	"github.com/pdiddy/arxiv-digest/internal/resolve"
	"github.com/pdiddy/arxiv-digest/internal/secrets"
	"github.com/pdiddy/arxiv-digest/internal/source"
	"github.com/pdiddy/arxiv-digest/internal/spotlight"
	"github.com/pdiddy/arxiv-digest/internal/trend"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// loadConfig builds the run configuration from the viper-resolved
// config file, environment, and defaults.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.Squash = true
	})
	if err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}

	if len(cfg.Search.Categories) == 0 {
		cfg.Search.Categories = []string{"cs.CL", "cs.LG"}
	}
	if cfg.Search.UserAgent == "" {
		cfg.Search.UserAgent = "arxiv-digest/" + version
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = 30 * time.Second
	}
	if cfg.Archive.Path == "" {
		path, err := xdg.DataFile("arxiv-digest/archive.db")
		if err != nil {
			return cfg, fmt.Errorf("resolving archive path: %w", err)
		}
		cfg.Archive.Path = path
	}

	cfg.LLM.APIKey = secrets.Resolve(cfg.LLM.APIKey, loadedSecrets, providerSecretName(cfg.LLM.Provider), "ARXIV_DIGEST_API_KEY")
	return cfg, nil
}

func providerSecretName(provider string) string {
	if provider == "openai" {
		return "openai-api-key"
	}
	return "anthropic-api-key"
}

// buildPipeline wires the stages from the configuration. The caller
// owns closing the returned store.
func buildPipeline(cfg types.Config) (*pipeline.Pipeline, *archive.Store, error) {
	provider, err := inference.NewProvider(cfg.LLM, cfg.LLM.APIKey)
	if err != nil {
		return nil, nil, err
	}
	service := inference.NewService(provider, cfg.LLM, cfg.Budget)

	store, err := archive.NewStore(cfg.Archive.Path)
	if err != nil {
		return nil, nil, err
	}

	src := &source.ArxivSource{
		Client: &http.Client{Timeout: cfg.Search.Timeout},
		HTTP:   cfg.Search.HTTPConfig,
		Retry:  types.DefaultRetryPolicy,
	}

	var signalSources []spotlight.SignalSource
	if cfg.Spotlight.Enable {
		signalSources = append(signalSources, &spotlight.SemanticScholar{
			Client: &http.Client{Timeout: cfg.Spotlight.FetchTimeout},
			APIKey: secrets.Resolve("", loadedSecrets, "semantic-scholar-api-key", "SEMANTIC_SCHOLAR_API_KEY"),
			Retry:  types.DefaultRetryPolicy,
		})
	}

	p := &pipeline.Pipeline{
		Resolver:     &resolve.Resolver{Source: src, Config: cfg.Search},
		Filter:       &filter.Filter{Service: service, LLM: cfg.LLM, Config: cfg.Filter},
		Orchestrator: &extract.Orchestrator{Service: service, LLM: cfg.LLM, Config: cfg.Extract},
		Trends:       &trend.Aggregator{Service: service, LLM: cfg.LLM, Config: cfg.Trend},
		Spotlight: &spotlight.Scorer{
			Sources: signalSources,
			Cache:   store,
			Service: service,
			LLM:     cfg.LLM,
			Config:  cfg.Spotlight,
		},
		Store:   store,
		Service: service,
		Config:  cfg,
	}
	return p, store, nil
}
