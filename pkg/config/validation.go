package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tag constraints and the cross-field rules tags
// cannot express: connector realms must be declared, JWT realms need a
// signing secret, the etc filter must be a valid glob and the session store
// must be usable.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	var errs []error

	for name, cc := range map[string]ConnectorConfig{"webapp": cfg.WebApp, "webservice": cfg.WebService} {
		if cc.Realm == "" {
			continue
		}
		if _, ok := cfg.Identity.Realms[cc.Realm]; !ok {
			errs = append(errs, fmt.Errorf("%s.realm: realm %q is not declared under identity.realms", name, cc.Realm))
		}
	}

	for name, realm := range cfg.Identity.Realms {
		if realm.Type == "jwt" && len(realm.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, fmt.Errorf("identity.realms.%s.jwt.secret: must be at least %d characters", name, minJWTSecretLength))
		}
		if realm.Type == "kerberos" && realm.Kerberos.Keytab == "" {
			errs = append(errs, fmt.Errorf("identity.realms.%s.kerberos.keytab: required", name))
		}
	}

	if cfg.Etc.Filter != "" {
		if _, err := filepath.Match(cfg.Etc.Filter, ""); err != nil {
			errs = append(errs, fmt.Errorf("etc.filter: %w", err))
		}
	}

	if err := cfg.Session.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("session.store: %w", err))
	}

	return errors.Join(errs...)
}
