package model

// Temporary structs the raw document object tree is decoded into before
// being built into the validated template model. Field shapes that the
// schema allows to vary (ranges, defaults, numeric bounds) are typed `any`
// and normalized by the builder.

type templateDef struct {
	SpecificationVersion string
	Schema               string `mapstructure:"$schema"`
	Name                 string
	Description          string
	ParameterDefinitions []parameterDef
	Steps                []stepDef
	JobEnvironments      []environmentDef

	// environment-2023-09 only
	Environment *environmentDef
}

type parameterDef struct {
	Name          string
	Type          string
	Description   string
	Default       any
	AllowedValues []any
	MinValue      any
	MaxValue      any
	MinLength     *int
	MaxLength     *int
	ObjectType    string
	DataFlow      string
}

type stepDef struct {
	Name             string
	Description      string
	Script           *stepScriptDef
	HostRequirements *hostRequirementsDef
	StepEnvironments []environmentDef
	ParameterSpace   *parameterSpaceDef
	Dependencies     []dependencyDef
}

type dependencyDef struct {
	DependsOn   string
	Association string
}

type parameterSpaceDef struct {
	TaskParameterDefinitions []taskParameterDef
	Combination              string
}

type taskParameterDef struct {
	Name  string
	Type  string
	Range any // []any for a value list, string for a range expression
}

// Step and environment scripts carry different action sets, so each gets
// its own definition struct: an onEnter under a step script (or an onRun
// under an environment script) is an unknown field, not a silent drop.
type stepScriptDef struct {
	Actions       stepActionsDef
	EmbeddedFiles []embeddedFileDef
}

type stepActionsDef struct {
	OnRun *actionDef
}

type environmentScriptDef struct {
	Actions       environmentActionsDef
	EmbeddedFiles []embeddedFileDef
}

type environmentActionsDef struct {
	OnEnter *actionDef
	OnExit  *actionDef
}

type actionDef struct {
	Command        string
	Args           []string
	TimeoutSeconds int
}

type embeddedFileDef struct {
	Name     string
	Type     string
	Filename string
	Runnable bool
	Data     string
}

type environmentDef struct {
	Name        string
	Description string
	Script      *environmentScriptDef
	Variables   map[string]string
}

type hostRequirementsDef struct {
	Amounts    []amountRequirementDef
	Attributes []attributeRequirementDef
}

type amountRequirementDef struct {
	Name string
	Min  any
	Max  any
}

type attributeRequirementDef struct {
	Name  string
	AnyOf []string
	AllOf []string
}
