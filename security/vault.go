package security

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/gridpath/systems"
)

// SecretStore holds system credentials in Vault's KV v2 engine. Each
// (tenant, system, target user) triple maps to one secret path; the authn
// method is stored beside the material so reads can verify they fetched the
// kind of credential the caller asked for.
type SecretStore struct {
	Client *api.Client
}

// VaultConfig may set up the vault client configuration. If any field is a
// zero value, it will be ignored and the default used.
type VaultConfig struct {
	Address       string
	ClientTimeout time.Duration
	MaxRetries    int
	Token         string
	TLSConfig
}

// TLSConfig is the configuration for TLS.
type TLSConfig struct {
	CACert             string
	CAPath             string
	ClientCert         string
	ClientKey          string
	InsecureSkipVerify bool
	TLSServerName      string
}

func (c VaultConfig) assign(apiCFG *api.Config) error {
	if c.Address != "" {
		apiCFG.Address = c.Address
	}

	if c.ClientTimeout > 0 {
		apiCFG.Timeout = c.ClientTimeout
	}

	if c.MaxRetries > 0 {
		apiCFG.MaxRetries = c.MaxRetries
	}

	if c.TLSServerName != "" {
		err := apiCFG.ConfigureTLS(&api.TLSConfig{
			CACert:        c.CACert,
			CAPath:        c.CAPath,
			ClientCert:    c.ClientCert,
			ClientKey:     c.ClientKey,
			TLSServerName: c.TLSServerName,
			Insecure:      c.InsecureSkipVerify,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// VaultOptFn is a functional input option to configure the vault client.
type VaultOptFn func(VaultConfig) VaultConfig

// WithVaultConfig provides a configuration to the constructor.
func WithVaultConfig(config VaultConfig) VaultOptFn {
	return func(VaultConfig) VaultConfig {
		return config
	}
}

// WithTLSConfig allows one to set the TLS config only.
func WithTLSConfig(tlsCFG TLSConfig) VaultOptFn {
	return func(cfg VaultConfig) VaultConfig {
		cfg.TLSConfig = tlsCFG
		return cfg
	}
}

// NewSecretStore creates a vault-backed secret store. Absent explicit
// configuration the client honors the standard vault environment variables.
func NewSecretStore(cfgOpts ...VaultOptFn) (*SecretStore, error) {
	explicitConfig := VaultConfig{}
	for _, o := range cfgOpts {
		explicitConfig = o(explicitConfig)
	}

	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, cfg.Error
	}

	if err := explicitConfig.assign(cfg); err != nil {
		return nil, err
	}

	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if explicitConfig.Token != "" {
		c.SetToken(explicitConfig.Token)
	}

	return &SecretStore{
		Client: c,
	}, nil
}

func secretPath(tenant, systemID, targetUser string) string {
	return fmt.Sprintf("/secret/data/systems/%s/%s/%s", tenant, systemID, targetUser)
}

// WriteSecret stores the credential for the target user on the system.
func (s *SecretStore) WriteSecret(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod, cred *systems.Credential) error {
	data := map[string]interface{}{
		"method":       string(method),
		"password":     cred.Password,
		"privateKey":   cred.PrivateKey,
		"publicKey":    cred.PublicKey,
		"accessKey":    cred.AccessKey,
		"accessSecret": cred.AccessSecret,
		"certificate":  cred.Certificate,
	}

	_, err := s.Client.Logical().Write(secretPath(tenant, systemID, targetUser),
		map[string]interface{}{"data": data})
	return err
}

// ReadSecret fetches the credential for the target user, or (nil, nil) when
// none is stored.
func (s *SecretStore) ReadSecret(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	sec, err := s.Client.Logical().Read(secretPath(tenant, systemID, targetUser))
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}

	data, ok := sec.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("value found in secret data is not map[string]interface{}")
	}

	str := func(k string) string {
		v, _ := data[k].(string)
		return v
	}

	if method != "" && str("method") != string(method) {
		// a credential exists, just not for the requested authn method
		return nil, nil
	}

	return &systems.Credential{
		Password:     str("password"),
		PrivateKey:   str("privateKey"),
		PublicKey:    str("publicKey"),
		AccessKey:    str("accessKey"),
		AccessSecret: str("accessSecret"),
		Certificate:  str("certificate"),
	}, nil
}

// DeleteSecret removes the credential and its version history.
func (s *SecretStore) DeleteSecret(ctx context.Context, tenant, systemID, targetUser string) error {
	_, err := s.Client.Logical().Delete(secretPath(tenant, systemID, targetUser))
	return err
}
