package policy

// Sensitivity classifies how protected the target resource is. The ordered
// levels 0..5 are grouped into NORMAL vs SENSITIVE and carry the static
// attributes that drive masking, audit and access-duration policy.
type Sensitivity string

const (
	SensPublic       Sensitivity = "PUBLIC"       // level 0
	SensInternal     Sensitivity = "INTERNAL"     // level 1
	SensConfidential Sensitivity = "CONFIDENTIAL" // level 2
	SensPII          Sensitivity = "PII"          // level 3, personal data
	SensRegulated    Sensitivity = "REGULATED"    // level 4
	SensCritical     Sensitivity = "CRITICAL"     // level 5
)

type sensAttrs struct {
	level         int
	sensitive     bool
	personalData  bool
	regulated     bool
	masking       bool
	auditLog      bool
	extraApproval bool
	maxUsageDays  int
}

var sensTable = map[Sensitivity]sensAttrs{
	SensPublic:       {level: 0, maxUsageDays: 365},
	SensInternal:     {level: 1, maxUsageDays: 180},
	SensConfidential: {level: 2, sensitive: true, auditLog: true, maxUsageDays: 90},
	SensPII:          {level: 3, sensitive: true, personalData: true, masking: true, auditLog: true, maxUsageDays: 30},
	SensRegulated:    {level: 4, sensitive: true, regulated: true, masking: true, auditLog: true, extraApproval: true, maxUsageDays: 14},
	SensCritical:     {level: 5, sensitive: true, regulated: true, masking: true, auditLog: true, extraApproval: true, maxUsageDays: 7},
}

// Sensitivities lists all levels in ascending order.
func Sensitivities() []Sensitivity {
	return []Sensitivity{SensPublic, SensInternal, SensConfidential, SensPII, SensRegulated, SensCritical}
}

func (s Sensitivity) Valid() bool { _, ok := sensTable[s]; return ok }

func (s Sensitivity) Level() int                       { return sensTable[s].level }
func (s Sensitivity) Sensitive() bool                  { return sensTable[s].sensitive }
func (s Sensitivity) PersonalData() bool               { return sensTable[s].personalData }
func (s Sensitivity) Regulated() bool                  { return sensTable[s].regulated }
func (s Sensitivity) RequiresMasking() bool            { return sensTable[s].masking }
func (s Sensitivity) RequiresAuditLog() bool           { return sensTable[s].auditLog }
func (s Sensitivity) RequiresAdditionalApproval() bool { return sensTable[s].extraApproval }
func (s Sensitivity) MaxUsageDays() int                { return sensTable[s].maxUsageDays }
