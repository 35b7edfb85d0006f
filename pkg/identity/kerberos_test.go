package identity

import (
	"encoding/base64"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/spnego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oidNTLMSSP = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}

func negotiateHeader(t *testing.T, mechs []asn1.ObjectIdentifier, mechToken []byte) string {
	t.Helper()
	tok := spnego.SPNEGOToken{
		Init: true,
		NegTokenInit: spnego.NegTokenInit{
			MechTypes:      mechs,
			MechTokenBytes: mechToken,
		},
	}
	data, err := tok.Marshal()
	require.NoError(t, err)
	return "Negotiate " + base64.StdEncoding.EncodeToString(data)
}

func TestNewKerberosManager_RequiresKeytab(t *testing.T) {
	t.Parallel()

	_, err := NewKerberosManager("corp", KerberosConfig{})
	assert.ErrorContains(t, err, "keytab is required")

	_, err = NewKerberosManager("corp", KerberosConfig{KeytabPath: filepath.Join(t.TempDir(), "absent.keytab")})
	assert.ErrorContains(t, err, "read keytab")
}

func TestKerberosManager_Authenticate(t *testing.T) {
	t.Parallel()

	m, err := NewKerberosManager("corp", KerberosConfig{Keytab: keytab.New(), ServicePrincipal: "HTTP/app.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "corp", m.Realm())
	assert.Equal(t, "Negotiate", m.Challenge())

	tests := []struct {
		name    string
		header  string
		wantErr error
		msg     string
	}{
		{name: "no header", header: "", wantErr: ErrNoCredentials},
		{name: "basic scheme", header: "Basic YWxpY2U6c2VjcmV0", wantErr: ErrNoCredentials},
		{name: "bad base64", header: "Negotiate !!!", wantErr: ErrInvalidCredentials, msg: "base64"},
		{name: "garbage token", header: "Negotiate " + base64.StdEncoding.EncodeToString([]byte("nope")), wantErr: ErrInvalidCredentials, msg: "malformed"},
		{
			name:    "ntlm only",
			header:  negotiateHeader(t, []asn1.ObjectIdentifier{oidNTLMSSP}, []byte{0x01}),
			wantErr: ErrInvalidCredentials,
			msg:     "not offered",
		},
		{
			name:    "kerberos without AP-REQ",
			header:  negotiateHeader(t, []asn1.ObjectIdentifier{oidKerberosV5}, []byte{0x01, 0x02}),
			wantErr: ErrInvalidCredentials,
			msg:     "AP-REQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			p, err := m.Authenticate(req)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
		})
	}
}

func TestPrincipalUser(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"alice":                   "alice",
		"alice@EXAMPLE.COM":       "alice",
		"alice/admin@EXAMPLE.COM": "alice",
		"HTTP/host":               "HTTP",
	}
	for in, want := range tests {
		assert.Equal(t, want, principalUser(in), in)
	}
}

func TestOffersKerberos(t *testing.T) {
	t.Parallel()

	assert.True(t, offersKerberos([]asn1.ObjectIdentifier{oidNTLMSSP, oidMSKerberosV5}))
	assert.False(t, offersKerberos([]asn1.ObjectIdentifier{oidNTLMSSP}))
	assert.False(t, offersKerberos(nil))
}
