package systems

// Credential is a secret bundle for reaching a system as a particular target
// user. Credentials live in the delegate's secret store and are never
// persisted by the registry.
type Credential struct {
	Password     string `json:"password,omitempty"`
	PrivateKey   string `json:"privateKey,omitempty"`
	PublicKey    string `json:"publicKey,omitempty"`
	AccessKey    string `json:"accessKey,omitempty"`
	AccessSecret string `json:"accessSecret,omitempty"`
	Certificate  string `json:"certificate,omitempty"`
}

// IsEmpty reports whether no secret material is present.
func (c *Credential) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.Password == "" && c.PrivateKey == "" && c.PublicKey == "" &&
		c.AccessKey == "" && c.AccessSecret == "" && c.Certificate == ""
}

// Redacted returns a copy safe for logging and audit records.
func (c *Credential) Redacted() *Credential {
	if c == nil {
		return nil
	}
	out := &Credential{}
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "*****"
	}
	out.Password = mask(c.Password)
	out.PrivateKey = mask(c.PrivateKey)
	out.PublicKey = c.PublicKey // public half is not sensitive
	out.AccessKey = mask(c.AccessKey)
	out.AccessSecret = mask(c.AccessSecret)
	out.Certificate = mask(c.Certificate)
	return out
}
