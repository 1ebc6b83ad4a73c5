// Package config provides configuration loading for VeganLens Core.
//
// Configuration is loaded from a YAML file with hardcoded defaults applied
// first and environment variable overrides (VEGANLENS_*) applied last. The
// loaded configuration is validated before use.
//
// The camera section carries the coordination thresholds (lease grace
// periods, recovery escalation windows, degradation heuristics) and the
// per-mode hardware defaults. These values were tuned empirically against
// real devices; the defaults here are the shipped values and changing them
// is a product decision, not a refactor.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	log := logging.New(cfg.Logging, version)
package config
