package policy

import workflow "github.com/hualuo-tech/datagov/internal/workflow"

// TargetType classifies what an approval points at. Each type exposes which
// approval types and access scopes make sense against it; requests outside
// that set are rejected as incompatible before any row is written.
type TargetType string

const (
	TargetDataset        TargetType = "DATASET"
	TargetDashboard      TargetType = "DASHBOARD"
	TargetReport         TargetType = "REPORT"
	TargetMLModel        TargetType = "ML_MODEL"
	TargetAPIEndpoint    TargetType = "API_ENDPOINT"
	TargetPipeline       TargetType = "PIPELINE"
	TargetCluster        TargetType = "CLUSTER"
	TargetSecurityRule   TargetType = "SECURITY_RULE"
	TargetServiceAccount TargetType = "SERVICE_ACCOUNT"
	TargetFileShare      TargetType = "FILE_SHARE"
)

// TargetClass buckets target types for reporting and policy grouping.
type TargetClass string

const (
	ClassData           TargetClass = "data"
	ClassAnalytics      TargetClass = "analytics"
	ClassInfrastructure TargetClass = "infrastructure"
	ClassSecurity       TargetClass = "security"
	ClassService        TargetClass = "service"
	ClassFilesystem     TargetClass = "filesystem"
)

type targetAttrs struct {
	class  TargetClass
	types  []workflow.ApprovalType
	scopes []Scope
}

var targetTable = map[TargetType]targetAttrs{
	TargetDataset: {
		class:  ClassData,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeShare, workflow.TypeExport, workflow.TypeModify, workflow.TypeDelete},
		scopes: []Scope{ScopeRead, ScopeReadFull, ScopeExport, ScopeWrite},
	},
	TargetDashboard: {
		class:  ClassAnalytics,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeCreate, workflow.TypeShare, workflow.TypeSubscribe, workflow.TypeModify, workflow.TypeDelete},
		scopes: []Scope{ScopeRead, ScopeReadFull, ScopeWrite},
	},
	TargetReport: {
		class:  ClassAnalytics,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeCreate, workflow.TypeShare, workflow.TypeSubscribe, workflow.TypeExport, workflow.TypeDelete},
		scopes: []Scope{ScopeRead, ScopeReadFull, ScopeExport},
	},
	TargetMLModel: {
		class:  ClassService,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeDeploy, workflow.TypeExecute, workflow.TypeModify, workflow.TypeDelete},
		scopes: []Scope{ScopeRead, ScopeReadFull, ScopeWrite, ScopeAdmin},
	},
	TargetAPIEndpoint: {
		class:  ClassService,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeSubscribe, workflow.TypeExecute, workflow.TypeManage},
		scopes: []Scope{ScopeRead, ScopeReadFull, ScopeWrite, ScopeAdmin},
	},
	TargetPipeline: {
		class:  ClassInfrastructure,
		types:  []workflow.ApprovalType{workflow.TypeDeploy, workflow.TypeExecute, workflow.TypeModify, workflow.TypeManage},
		scopes: []Scope{ScopeRead, ScopeWrite, ScopeAdmin},
	},
	TargetCluster: {
		class:  ClassInfrastructure,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeDeploy, workflow.TypeManage},
		scopes: []Scope{ScopeRead, ScopeWrite, ScopeAdmin},
	},
	TargetSecurityRule: {
		class:  ClassSecurity,
		types:  []workflow.ApprovalType{workflow.TypeCreate, workflow.TypeModify, workflow.TypeDelete, workflow.TypeManage},
		scopes: []Scope{ScopeRead, ScopeWrite, ScopeAdmin},
	},
	TargetServiceAccount: {
		class:  ClassService,
		types:  []workflow.ApprovalType{workflow.TypeCreate, workflow.TypeModify, workflow.TypeDelete, workflow.TypeManage},
		scopes: []Scope{ScopeRead, ScopeAdmin},
	},
	TargetFileShare: {
		class:  ClassFilesystem,
		types:  []workflow.ApprovalType{workflow.TypeAccess, workflow.TypeShare, workflow.TypeExport, workflow.TypeDelete},
		scopes: []Scope{ScopeRead, ScopeReadFull, ScopeExport, ScopeWrite},
	},
}

// TargetTypes lists every known target type in a stable order.
func TargetTypes() []TargetType {
	return []TargetType{
		TargetDataset, TargetDashboard, TargetReport, TargetMLModel, TargetAPIEndpoint,
		TargetPipeline, TargetCluster, TargetSecurityRule, TargetServiceAccount, TargetFileShare,
	}
}

func (t TargetType) Valid() bool { _, ok := targetTable[t]; return ok }

func (t TargetType) Class() TargetClass { return targetTable[t].class }

// Allows reports whether the approval type can be requested against t.
func (t TargetType) Allows(at workflow.ApprovalType) bool {
	for _, k := range targetTable[t].types {
		if k == at {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the access scope can be requested against t.
func (t TargetType) AllowsScope(s Scope) bool {
	for _, k := range targetTable[t].scopes {
		if k == s {
			return true
		}
	}
	return false
}
