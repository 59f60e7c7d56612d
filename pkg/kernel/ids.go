package kernel

// IdentityID identifies an authenticating principal. It is opaque: the
// kernel attaches no profile data to it.
type IdentityID string

func NewIdentityID(id string) IdentityID { return IdentityID(id) }
func (i IdentityID) String() string      { return string(i) }
func (i IdentityID) IsEmpty() bool       { return string(i) == "" }

// ClientID identifies an OAuth client application.
type ClientID string

func NewClientID(id string) ClientID { return ClientID(id) }
func (c ClientID) String() string    { return string(c) }
func (c ClientID) IsEmpty() bool     { return string(c) == "" }

// CodeID identifies an authorization code. The code value itself is the
// identifier, so it is minted by a cryptographic generator.
type CodeID string

func NewCodeID(id string) CodeID { return CodeID(id) }
func (c CodeID) String() string  { return string(c) }
func (c CodeID) IsEmpty() bool   { return string(c) == "" }

// TokenID identifies an issued access token.
type TokenID string

func NewTokenID(id string) TokenID { return TokenID(id) }
func (t TokenID) String() string   { return string(t) }
func (t TokenID) IsEmpty() bool    { return string(t) == "" }

// ChallengeID identifies a pending MFA challenge.
type ChallengeID string

func NewChallengeID(id string) ChallengeID { return ChallengeID(id) }
func (c ChallengeID) String() string       { return string(c) }
func (c ChallengeID) IsEmpty() bool        { return string(c) == "" }

// AttemptID identifies an authentication attempt record.
type AttemptID string

func NewAttemptID(id string) AttemptID { return AttemptID(id) }
func (a AttemptID) String() string     { return string(a) }
func (a AttemptID) IsEmpty() bool      { return string(a) == "" }
