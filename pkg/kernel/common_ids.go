package kernel

// UserID identifies a user account.
type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

// OrganizationID identifies the organization a user or credential belongs to.
// Organizations are optional: a personal account carries an empty OrganizationID.
type OrganizationID string

func NewOrganizationID(id string) OrganizationID { return OrganizationID(id) }
func (o OrganizationID) String() string          { return string(o) }
func (o OrganizationID) IsEmpty() bool           { return string(o) == "" }

// SessionID identifies a platform-scoped session row.
type SessionID string

func NewSessionID(id string) SessionID { return SessionID(id) }
func (s SessionID) String() string     { return string(s) }
func (s SessionID) IsEmpty() bool      { return string(s) == "" }

// APIKeyID identifies an API key record.
type APIKeyID string

func NewAPIKeyID(id string) APIKeyID { return APIKeyID(id) }
func (a APIKeyID) String() string    { return string(a) }
func (a APIKeyID) IsEmpty() bool     { return string(a) == "" }

// ClientID identifies a registered OAuth client application.
type ClientID string

func NewClientID(id string) ClientID { return ClientID(id) }
func (c ClientID) String() string    { return string(c) }
func (c ClientID) IsEmpty() bool     { return string(c) == "" }

// UniversalID is the stable cross-method identity assigned by the UAI
// resolution layer: every credential a caller presents (IdP JWT, API key,
// OAuth session, device code, SSO cookie) resolves to the same UniversalID.
type UniversalID string

func NewUniversalID(id string) UniversalID { return UniversalID(id) }
func (u UniversalID) String() string       { return string(u) }
func (u UniversalID) IsEmpty() bool        { return string(u) == "" }
