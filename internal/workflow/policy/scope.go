package policy

// Scope is the kind and strength of the permission being requested, with an
// ordered risk level 1..5. Risk >= 4 is treated as high risk.
type Scope string

const (
	ScopeRead     Scope = "READ"      // risk 1: masked/aggregated read
	ScopeReadFull Scope = "READ_FULL" // risk 2: unmasked read
	ScopeExport   Scope = "EXPORT"    // risk 3: data leaves the platform
	ScopeWrite    Scope = "WRITE"     // risk 4
	ScopeAdmin    Scope = "ADMIN"     // risk 5
)

type scopeAttrs struct {
	risk      int
	write     bool
	temporary bool
	masking   bool
}

var scopeTable = map[Scope]scopeAttrs{
	ScopeRead:     {risk: 1, temporary: true, masking: true},
	ScopeReadFull: {risk: 2, temporary: true},
	ScopeExport:   {risk: 3, masking: true},
	ScopeWrite:    {risk: 4, write: true},
	ScopeAdmin:    {risk: 5, write: true},
}

// Scopes lists all access scopes in ascending risk order.
func Scopes() []Scope {
	return []Scope{ScopeRead, ScopeReadFull, ScopeExport, ScopeWrite, ScopeAdmin}
}

func (s Scope) Valid() bool { _, ok := scopeTable[s]; return ok }

func (s Scope) Risk() int             { return scopeTable[s].risk }
func (s Scope) Write() bool           { return scopeTable[s].write }
func (s Scope) Temporary() bool       { return scopeTable[s].temporary }
func (s Scope) RequiresMasking() bool { return scopeTable[s].masking }
func (s Scope) HighRisk() bool        { return scopeTable[s].risk >= 4 }
