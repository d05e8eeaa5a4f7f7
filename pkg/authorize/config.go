package authorize

import "github.com/Alijeyrad/simorq_booking/config"

type Config struct {
	// CasbinModelPath may be empty; DefaultModel is used then.
	CasbinModelPath string

	EnableAudit      bool
	SuperadminBypass bool

	// PolicySync subscribes to PolicyChannel so grants made by one instance
	// reach the others without a restart.
	PolicySync bool
}

func FromCentralConfig(c config.AuthorizationConfig) Config {
	return Config{
		CasbinModelPath:  c.CasbinModelPath,
		EnableAudit:      c.EnableAudit,
		SuperadminBypass: c.SuperadminBypass,
		PolicySync:       c.PolicySync,
	}
}

// New wraps e according to cfg.
func New(e Enforcer, cfg Config) (IAuthorization, error) {
	var opts []Option
	if !cfg.SuperadminBypass {
		opts = append(opts, WithoutSuperadminBypass())
	}
	auth, err := NewAuthorization(e, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.EnableAudit {
		return NewAuditedAuthorization(auth, nil), nil
	}
	return auth, nil
}
