package identity

import (
	"fmt"
	"sort"

	"github.com/marmos91/hostkit/pkg/config"
)

// RealmProvider serves the realms declared in the configuration.
type RealmProvider struct {
	managers map[string]Manager
}

var _ Provider = (*RealmProvider)(nil)

// NewRealmProvider builds one manager per configured realm.
func NewRealmProvider(cfg config.IdentityConfig) (*RealmProvider, error) {
	p := &RealmProvider{managers: make(map[string]Manager, len(cfg.Realms))}

	for name, rc := range cfg.Realms {
		users := make([]User, 0, len(rc.Users))
		for _, u := range rc.Users {
			users = append(users, User{Username: u.Username, PasswordHash: u.PasswordHash, Roles: u.Roles})
		}

		var (
			m   Manager
			err error
		)
		switch rc.Type {
		case "static":
			m, err = NewStaticManager(name, users)
		case "jwt":
			m, err = NewJWTManager(name, JWTConfig{
				Secret:        rc.JWT.Secret,
				Issuer:        rc.JWT.Issuer,
				TokenDuration: rc.JWT.TokenDuration,
			}, users)
		case "kerberos":
			m, err = NewKerberosManager(name, KerberosConfig{
				KeytabPath:       rc.Kerberos.Keytab,
				ServicePrincipal: rc.Kerberos.ServicePrincipal,
				MaxClockSkew:     rc.Kerberos.MaxClockSkew,
				Roles:            rc.Kerberos.Roles,
			})
		default:
			err = fmt.Errorf("unsupported realm type %q", rc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("realm %s: %w", name, err)
		}
		p.managers[name] = m
	}

	return p, nil
}

// IdentityManager returns the manager of realm or ErrUnknownRealm.
func (p *RealmProvider) IdentityManager(realm string) (Manager, error) {
	m, ok := p.managers[realm]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRealm, realm)
	}
	return m, nil
}

// Realms returns the configured realm names, sorted.
func (p *RealmProvider) Realms() []string {
	names := make([]string, 0, len(p.managers))
	for name := range p.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
