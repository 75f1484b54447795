package directus

import (
	"cmsops/pkg/config"

	"go.uber.org/zap"
)

// FromConfig builds a client from the loaded configuration. A configured
// static token wins over admin credentials.
func FromConfig(cfg *config.Config, log *zap.Logger) (*Client, error) {
	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}
	opts := []Option{WithTimeout(cfg.Directus.Timeout), WithLogger(log)}
	if cfg.Directus.Token != "" {
		opts = append(opts, WithStaticToken(cfg.Directus.Token))
	} else {
		opts = append(opts, WithCredentials(cfg.Admin.Email, cfg.Admin.Password))
	}
	return New(cfg.Directus.URL, opts...), nil
}
