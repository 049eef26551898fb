package decide

import (
	"encoding/json"
	"os"

	perr "mailroom/internal/platform/errors"
	"mailroom/internal/platform/net/http/bind"
)

// Rule match kinds
const (
	MatchCategory = "category"
)

// Rule maps a classified category to a route
type Rule struct {
	RuleID    string `json:"rule_id"    validate:"required"`
	Match     string `json:"match"      validate:"required,oneof=category"`
	Value     string `json:"value"      validate:"required"`
	Route     string `json:"route"      validate:"required"`
	RiskLevel string `json:"risk_level" validate:"required,oneof=low medium high"`
}

// Config is the routing configuration loaded at startup.
// Every rule must reference a declared route; a config referencing an
// undefined route is rejected before the server accepts traffic
type Config struct {
	Version             string   `json:"version"              validate:"required"`
	Routes              []string `json:"routes"               validate:"required,min=1"`
	ConfidenceThreshold float64  `json:"confidence_threshold" validate:"gte=0,lte=1"`
	SecurityKeywords    []string `json:"security_keywords"`
	Rules               []Rule   `json:"rules"`
}

// DefaultConfig is used when no routing config file is given
func DefaultConfig() Config {
	return Config{
		Version:             "builtin-v1",
		Routes:              []string{RouteNoopLateEvent, RouteEscalateHuman, RouteRequestMoreInfo, RouteCreateDraftTicket, RouteNeedsReview},
		ConfidenceThreshold: 0.75,
		SecurityKeywords:    []string{"password", "credential", "security", "breach"},
	}
}

// LoadConfig reads and validates a routing config JSON file
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "routing config %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, perr.JSONErrf("routing config %s: %v", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags plus internal consistency
func Validate(cfg Config) error {
	if err := bind.Struct(cfg); err != nil {
		return err
	}
	known := make(map[string]bool, len(cfg.Routes))
	for _, r := range cfg.Routes {
		known[r] = true
	}
	seen := make(map[string]bool, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		if !known[rule.Route] {
			return perr.Validationf("rule %s references undefined route %q", rule.RuleID, rule.Route)
		}
		if seen[rule.RuleID] {
			return perr.Validationf("duplicate rule id %q", rule.RuleID)
		}
		seen[rule.RuleID] = true
	}
	return nil
}
