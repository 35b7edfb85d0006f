package identity

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/service"
	"github.com/jcmturner/gokrb5/v8/spnego"

	"github.com/marmos91/hostkit/internal/logger"
)

// Kerberos mechanism OIDs offered in a SPNEGO NegTokenInit.
var (
	oidKerberosV5   = asn1.ObjectIdentifier{1, 2, 840, 113554, 1, 2, 2}
	oidMSKerberosV5 = asn1.ObjectIdentifier{1, 2, 840, 48018, 1, 2, 2}
)

const negotiateScheme = "Negotiate"

// KerberosConfig configures a SPNEGO realm.
type KerberosConfig struct {
	// Keytab holds the service key. KeytabPath is read when Keytab is nil.
	Keytab     *keytab.Keytab
	KeytabPath string

	// ServicePrincipal is the SPN tickets must be issued for, e.g.
	// "HTTP/app.example.com". Empty accepts any principal in the keytab.
	ServicePrincipal string

	MaxClockSkew time.Duration

	// Roles maps a client principal's user part to its roles.
	Roles map[string][]string
}

// KerberosManager authenticates HTTP Negotiate (SPNEGO) requests carrying a
// Kerberos AP-REQ. Only single-round negotiation is supported: the server
// never sends a continuation token.
type KerberosManager struct {
	realm    string
	settings *service.Settings
	roles    map[string][]string
}

var _ Manager = (*KerberosManager)(nil)

// NewKerberosManager loads the keytab and prepares ticket verification.
func NewKerberosManager(realm string, cfg KerberosConfig) (*KerberosManager, error) {
	kt := cfg.Keytab
	if kt == nil {
		if cfg.KeytabPath == "" {
			return nil, fmt.Errorf("realm %s: keytab is required", realm)
		}
		data, err := os.ReadFile(cfg.KeytabPath)
		if err != nil {
			return nil, fmt.Errorf("read keytab file: %w", err)
		}
		kt = keytab.New()
		if err := kt.Unmarshal(data); err != nil {
			return nil, fmt.Errorf("parse keytab: %w", err)
		}
	}

	skew := cfg.MaxClockSkew
	if skew == 0 {
		skew = 5 * time.Minute
	}
	opts := []func(*service.Settings){
		service.MaxClockSkew(skew),
		service.DecodePAC(false),
	}
	if cfg.ServicePrincipal != "" {
		opts = append(opts, service.KeytabPrincipal(cfg.ServicePrincipal))
	}

	return &KerberosManager{
		realm:    realm,
		settings: service.NewSettings(kt, opts...),
		roles:    cfg.Roles,
	}, nil
}

func (m *KerberosManager) Realm() string { return m.realm }

func (m *KerberosManager) Challenge() string { return negotiateScheme }

func (m *KerberosManager) Authenticate(r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, negotiateScheme) {
		return nil, ErrNoCredentials
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: negotiate token is not base64", ErrInvalidCredentials)
	}

	// 1. Unwrap the SPNEGO NegTokenInit
	var tok spnego.SPNEGOToken
	if err := tok.Unmarshal(data); err != nil || !tok.Init {
		return nil, fmt.Errorf("%w: malformed SPNEGO token", ErrInvalidCredentials)
	}
	if !offersKerberos(tok.NegTokenInit.MechTypes) {
		return nil, fmt.Errorf("%w: kerberos mechanism not offered", ErrInvalidCredentials)
	}

	// 2. Extract and verify the AP-REQ
	var krb5 spnego.KRB5Token
	if err := krb5.Unmarshal(tok.NegTokenInit.MechTokenBytes); err != nil || !krb5.IsAPReq() {
		return nil, fmt.Errorf("%w: no kerberos AP-REQ", ErrInvalidCredentials)
	}
	ok, creds, err := service.VerifyAPREQ(&krb5.APReq, m.settings)
	if err != nil || !ok {
		logger.Debug("Kerberos AP-REQ verification failed", logger.KeyRealm, m.realm, logger.KeyError, err)
		return nil, ErrInvalidCredentials
	}

	// 3. Map the client principal
	name := principalUser(creds.CName().PrincipalNameString())
	return &Principal{Name: name, Realm: m.realm, Roles: m.roles[name]}, nil
}

func offersKerberos(mechs []asn1.ObjectIdentifier) bool {
	for _, mech := range mechs {
		if mech.Equal(oidKerberosV5) || mech.Equal(oidMSKerberosV5) {
			return true
		}
	}
	return false
}

// principalUser strips the realm suffix and any service instance, so
// "alice@EXAMPLE.COM" and "alice/admin" both become "alice".
func principalUser(principal string) string {
	if idx := strings.LastIndex(principal, "@"); idx > 0 {
		principal = principal[:idx]
	}
	if idx := strings.Index(principal, "/"); idx >= 0 {
		principal = principal[:idx]
	}
	return principal
}
