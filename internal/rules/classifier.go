package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pgx-cds-server/internal/domain"
)

// Classifier resolves (gene, drug, phenotype) triples to risk
// assessments. Resolution is deterministic: stored rule first, explicit
// overrides applied on top, severity always re-derived when a risk is
// overridden. Results pass through a two-tier cache.
type Classifier struct {
	store  Store
	logger *logrus.Logger

	memoryCache *expirable.LRU[string, domain.RiskAssessment]
	redisCache  *redis.Client
	redisTTL    time.Duration
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithRedisCache enables the distributed cache tier.
func WithRedisCache(client *redis.Client, ttl time.Duration) ClassifierOption {
	return func(c *Classifier) {
		c.redisCache = client
		c.redisTTL = ttl
	}
}

// NewClassifier creates a classifier over the given rule store.
func NewClassifier(store Store, logger *logrus.Logger, cacheSize int, cacheTTL time.Duration, opts ...ClassifierOption) *Classifier {
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	c := &Classifier{
		store:       store,
		logger:      logger,
		memoryCache: expirable.NewLRU[string, domain.RiskAssessment](cacheSize, nil, cacheTTL),
		redisTTL:    time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(gene, drug, phenotype string) string {
	return fmt.Sprintf("cpic:%s:%s:%s", gene, drug, phenotype)
}

// Classify resolves the risk assessment for a triple. drug must already
// be the generic catalog name. A triple with neither a stored rule nor
// an override yields an explicit unknown assessment, never an invented
// classification.
func (c *Classifier) Classify(ctx context.Context, gene, drug, phenotype string) (domain.RiskAssessment, error) {
	key := cacheKey(gene, drug, phenotype)

	if cached, ok := c.memoryCache.Get(key); ok {
		return cached, nil
	}
	if c.redisCache != nil {
		if cached, ok := c.redisGet(ctx, key); ok {
			c.memoryCache.Add(key, cached)
			return cached, nil
		}
	}

	assessment, err := c.resolve(ctx, gene, drug, phenotype)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	c.memoryCache.Add(key, assessment)
	if c.redisCache != nil {
		c.redisSet(ctx, key, assessment)
	}
	return assessment, nil
}

func (c *Classifier) resolve(ctx context.Context, gene, drug, phenotype string) (domain.RiskAssessment, error) {
	rule, err := c.store.Get(ctx, gene, drug, phenotype)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("rule lookup for %s/%s: %w", gene, drug, err)
	}

	if rule != nil {
		risk := rule.RiskCategory
		severity := rule.Severity
		if override, ok := overrideFor(drug, phenotype); ok {
			risk = override
			severity = severityFor(override)
		}
		action := rule.Action
		if action == "" {
			action = "Clinical judgment required"
		}
		return domain.RiskAssessment{
			Drug:             drug,
			Gene:             gene,
			RiskCategory:     risk,
			Severity:         severity,
			EvidenceLevel:    rule.EvidenceLevel,
			Recommendation:   rule.Recommendation,
			Action:           action,
			Contraindication: risk == domain.RiskToxic,
			Citations:        rule.Citations,
		}, nil
	}

	if override, ok := overrideFor(drug, phenotype); ok {
		return domain.RiskAssessment{
			Drug:             drug,
			Gene:             gene,
			RiskCategory:     override,
			Severity:         severityFor(override),
			EvidenceLevel:    domain.EvidenceLevelB,
			Recommendation:   fmt.Sprintf("Explicit mapping applied for %s phenotype.", phenotype),
			Action:           "Adjust according to risk level.",
			Contraindication: override == domain.RiskToxic,
			Citations:        []string{},
		}, nil
	}

	c.logger.WithFields(logrus.Fields{
		"gene":      gene,
		"drug":      drug,
		"phenotype": phenotype,
	}).Warn("No guideline rule for triple")

	return domain.RiskAssessment{
		Drug:             drug,
		Gene:             gene,
		RiskCategory:     domain.RiskUnknown,
		Severity:         severityFor(domain.RiskUnknown),
		EvidenceLevel:    domain.EvidenceLevelB,
		Recommendation:   fmt.Sprintf("No guideline rule covers the %s phenotype for %s.", phenotype, drug),
		Action:           "Clinical judgment required",
		Contraindication: false,
		Citations:        []string{},
	}, nil
}

// Invalidate drops any cached assessment for the triple, for use after
// the underlying rule changes.
func (c *Classifier) Invalidate(ctx context.Context, gene, drug, phenotype string) {
	key := cacheKey(gene, drug, phenotype)
	c.memoryCache.Remove(key)
	if c.redisCache != nil {
		if err := c.redisCache.Del(ctx, key).Err(); err != nil {
			c.logger.WithError(err).Debug("Redis cache invalidation failed")
		}
	}
}

func (c *Classifier) redisGet(ctx context.Context, key string) (domain.RiskAssessment, bool) {
	val, err := c.redisCache.Get(ctx, key).Result()
	if err == redis.Nil {
		return domain.RiskAssessment{}, false
	}
	if err != nil {
		c.logger.WithError(err).Debug("Redis cache read failed")
		return domain.RiskAssessment{}, false
	}
	var assessment domain.RiskAssessment
	if err := json.Unmarshal([]byte(val), &assessment); err != nil {
		c.redisCache.Del(ctx, key)
		return domain.RiskAssessment{}, false
	}
	return assessment, true
}

func (c *Classifier) redisSet(ctx context.Context, key string, assessment domain.RiskAssessment) {
	data, err := json.Marshal(assessment)
	if err != nil {
		return
	}
	if err := c.redisCache.Set(ctx, key, data, c.redisTTL).Err(); err != nil {
		c.logger.WithError(err).Debug("Redis cache write failed")
	}
}
