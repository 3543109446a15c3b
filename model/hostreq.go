package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openjobspec/openjd/expr"
)

var (
	ErrAmountBoundsRequired    = fmt.Errorf("amount requirement must declare at least one of min and max")
	ErrAttributeValuesRequired = fmt.Errorf("attribute requirement must declare at least one of anyOf and allOf")
	ErrTooManyRequirements     = fmt.Errorf("a step may declare at most %d host requirements", maxHostRequirements)
	ErrBadCapabilityName       = fmt.Errorf("not a valid capability name")
	ErrReservedCapabilityScope = fmt.Errorf("capability name uses a reserved scope")
	ErrBadAttributeValue       = fmt.Errorf("not a valid attribute capability value")
)

const maxHostRequirements = 50

// HostRequirementsTemplate declares the host capabilities a step's tasks
// need to run: quantifiable amounts and discrete attributes. Names and
// attribute values may be format strings; ones carrying expressions are
// validated as capability names only after substitution at job creation.
type HostRequirementsTemplate struct {
	Amounts    []AmountRequirementTemplate
	Attributes []AttributeRequirementTemplate
}

// AmountRequirementTemplate constrains a quantifiable capability such as
// amount.worker.vcpu. At least one of Min and Max is set.
type AmountRequirementTemplate struct {
	Name *expr.FormatString
	Min  *decimal.Decimal
	Max  *decimal.Decimal
}

// AttributeRequirementTemplate constrains a discrete capability such as
// attr.worker.os.family. AnyOf admits a host matching any listed value;
// AllOf requires all of them. At least one of the two is non-empty.
type AttributeRequirementTemplate struct {
	Name  *expr.FormatString
	AnyOf []*expr.FormatString
	AllOf []*expr.FormatString
}

// HostRequirements is the instantiated form: every format expression
// substituted and every name validated as a capability name.
type HostRequirements struct {
	Amounts    []AmountRequirement
	Attributes []AttributeRequirement
}

type AmountRequirement struct {
	Name string
	Min  *decimal.Decimal
	Max  *decimal.Decimal
}

type AttributeRequirement struct {
	Name  string
	AnyOf []string
	AllOf []string
}

// Capability names are an optional vendor prefix, an amount/attr marker,
// and one or more dot-separated segments. Matching is case-insensitive.
var capabilityNameRe = regexp.MustCompile(`^(?:[a-z_][a-z0-9_]+:)?(?:amount|attr)(?:\.[a-z_][a-z0-9_]*)+$`)

var attributeValueRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_\-]*$`)

// Scopes held back for the specification's own capability definitions.
var reservedCapabilityScopes = map[string]bool{
	"worker": true,
	"job":    true,
	"step":   true,
	"task":   true,
}

var standardAmountCapabilities = map[string]bool{
	"amount.worker.vcpu":         true,
	"amount.worker.memory":       true,
	"amount.worker.gpu":          true,
	"amount.worker.gpu.memory":   true,
	"amount.worker.disk.scratch": true,
}

var standardAttributeCapabilities = map[string]struct {
	values      map[string]bool
	multivalued bool
}{
	"attr.worker.os.family": {
		values: map[string]bool{"linux": true, "windows": true, "macos": true},
	},
	"attr.worker.cpu.arch": {
		values: map[string]bool{"x86_64": true, "arm64": true},
	},
}

// capabilityBase lowercases a capability name and strips its vendor prefix.
func capabilityBase(name string) string {
	base := strings.ToLower(name)
	if i := strings.IndexByte(base, ':'); i >= 0 {
		base = base[i+1:]
	}
	return base
}

// checkCapabilityName validates name as a capability of the given kind
// ("amount" or "attr"). Standard capability names pass as-is; any other
// name must use a scope outside the reserved set.
func checkCapabilityName(name, kind string) error {
	if !capabilityNameRe.MatchString(strings.ToLower(name)) {
		return fmt.Errorf("%w: %q", ErrBadCapabilityName, name)
	}
	base := capabilityBase(name)
	if !strings.HasPrefix(base, kind+".") {
		return fmt.Errorf("%w: %q must begin with %q", ErrBadCapabilityName, name, kind+".")
	}
	if kind == "amount" && standardAmountCapabilities[base] {
		return nil
	}
	if _, ok := standardAttributeCapabilities[base]; kind == "attr" && ok {
		return nil
	}
	if scope := strings.Split(base, ".")[1]; reservedCapabilityScopes[scope] {
		return fmt.Errorf("%w: %q (scope %q)", ErrReservedCapabilityScope, name, scope)
	}
	return nil
}

// checkAttributeValue validates one anyOf/allOf entry. For a standard
// capability the value must also be one the capability defines.
func checkAttributeValue(capability, value string) error {
	if len(value) == 0 || len(value) > 100 || !attributeValueRe.MatchString(value) {
		return fmt.Errorf("%w: %q", ErrBadAttributeValue, value)
	}
	if std, ok := standardAttributeCapabilities[capability]; ok {
		if !std.values[strings.ToLower(value)] {
			return fmt.Errorf("%w: %q is not a value of %s", ErrBadAttributeValue, value, capability)
		}
	}
	return nil
}

func buildHostRequirements(hd hostRequirementsDef, path string) (*HostRequirementsTemplate, error) {
	var errs ErrorList
	req := &HostRequirementsTemplate{}

	if n := len(hd.Amounts) + len(hd.Attributes); n > maxHostRequirements {
		errs.Add(Errorf(KindSchemaViolation, path, "%w: %d declared", ErrTooManyRequirements, n))
	}

	for i, ad := range hd.Amounts {
		amount, err := buildAmountRequirement(ad, fmt.Sprintf("%s.amounts[%d]", path, i))
		errs.Add(err)
		if amount != nil {
			req.Amounts = append(req.Amounts, *amount)
		}
	}
	for i, ad := range hd.Attributes {
		attr, err := buildAttributeRequirement(ad, fmt.Sprintf("%s.attributes[%d]", path, i))
		errs.Add(err)
		if attr != nil {
			req.Attributes = append(req.Attributes, *attr)
		}
	}
	return req, errs.AsError()
}

func buildAmountRequirement(ad amountRequirementDef, path string) (*AmountRequirementTemplate, error) {
	var errs ErrorList
	amount := &AmountRequirementTemplate{}

	if ad.Name == "" {
		errs.Add(WrapError(KindSchemaViolation, path+".name", ErrNameRequired))
	} else if name, err := expr.ParseFormatString(ad.Name); err != nil {
		errs.Add(WrapError(KindSchemaViolation, path+".name", err))
	} else {
		if !name.HasReferences() {
			if err := checkCapabilityName(ad.Name, "amount"); err != nil {
				errs.Add(WrapError(KindSchemaViolation, path+".name", err))
			}
		}
		amount.Name = name
	}

	var err error
	if amount.Min, err = anyToDecimal(ad.Min); err != nil {
		errs.Add(WrapError(KindSchemaViolation, path+".min", err))
	}
	if amount.Max, err = anyToDecimal(ad.Max); err != nil {
		errs.Add(WrapError(KindSchemaViolation, path+".max", err))
	}
	if amount.Min == nil && amount.Max == nil {
		errs.Add(WrapError(KindSchemaViolation, path, ErrAmountBoundsRequired))
	}
	if amount.Min != nil && amount.Min.IsNegative() {
		errs.Add(Errorf(KindSchemaViolation, path+".min", "min cannot be negative, got %s", amount.Min))
	}
	if amount.Max != nil && !amount.Max.IsPositive() {
		errs.Add(Errorf(KindSchemaViolation, path+".max", "max must be positive, got %s", amount.Max))
	}
	if amount.Min != nil && amount.Max != nil && amount.Min.GreaterThan(*amount.Max) {
		errs.Add(Errorf(KindSchemaViolation, path+".min", "%w (%s > %s)",
			ErrBadBoundsOrder, amount.Min, amount.Max))
	}
	return amount, errs.AsError()
}

func buildAttributeRequirement(ad attributeRequirementDef, path string) (*AttributeRequirementTemplate, error) {
	var errs ErrorList
	attr := &AttributeRequirementTemplate{}
	var capability string

	if ad.Name == "" {
		errs.Add(WrapError(KindSchemaViolation, path+".name", ErrNameRequired))
	} else if name, err := expr.ParseFormatString(ad.Name); err != nil {
		errs.Add(WrapError(KindSchemaViolation, path+".name", err))
	} else {
		if !name.HasReferences() {
			if err := checkCapabilityName(ad.Name, "attr"); err != nil {
				errs.Add(WrapError(KindSchemaViolation, path+".name", err))
			}
			capability = capabilityBase(ad.Name)
		}
		attr.Name = name
	}

	if len(ad.AnyOf) == 0 && len(ad.AllOf) == 0 {
		errs.Add(WrapError(KindSchemaViolation, path, ErrAttributeValuesRequired))
	}
	attr.AnyOf = buildAttributeValues(ad.AnyOf, capability, path+".anyOf", &errs)
	attr.AllOf = buildAttributeValues(ad.AllOf, capability, path+".allOf", &errs)

	if std, ok := standardAttributeCapabilities[capability]; ok && !std.multivalued && len(ad.AllOf) > 1 {
		errs.Add(Errorf(KindSchemaViolation, path+".allOf",
			"capability %s holds a single value; allOf cannot require %d", capability, len(ad.AllOf)))
	}
	return attr, errs.AsError()
}

func buildAttributeValues(values []string, capability, path string, errs *ErrorList) []*expr.FormatString {
	var out []*expr.FormatString
	for i, value := range values {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		fs, err := expr.ParseFormatString(value)
		if err != nil {
			errs.Add(WrapError(KindSchemaViolation, itemPath, err))
			continue
		}
		if !fs.HasReferences() {
			if err := checkAttributeValue(capability, value); err != nil {
				errs.Add(WrapError(KindSchemaViolation, itemPath, err))
				continue
			}
		}
		out = append(out, fs)
	}
	return out
}

// resolveHostRequirements substitutes the job-scope expressions in names
// and attribute values. A name or value that was an expression at decode
// time is validated now, against the same rules.
func resolveHostRequirements(tmpl *HostRequirementsTemplate, symtab SymbolTable, path string) (*HostRequirements, error) {
	var errs ErrorList
	out := &HostRequirements{}

	for i, amount := range tmpl.Amounts {
		amountPath := fmt.Sprintf("%s.amounts[%d]", path, i)
		name, err := amount.Name.Resolve(symtab)
		if err != nil {
			errs.Add(WrapError(KindSymbolResolution, amountPath+".name", err))
			continue
		}
		if amount.Name.HasReferences() {
			if err := checkCapabilityName(name, "amount"); err != nil {
				errs.Add(WrapError(KindSchemaViolation, amountPath+".name", err))
				continue
			}
		}
		out.Amounts = append(out.Amounts, AmountRequirement{
			Name: name, Min: amount.Min, Max: amount.Max,
		})
	}

	for i, attr := range tmpl.Attributes {
		attrPath := fmt.Sprintf("%s.attributes[%d]", path, i)
		name, err := attr.Name.Resolve(symtab)
		if err != nil {
			errs.Add(WrapError(KindSymbolResolution, attrPath+".name", err))
			continue
		}
		if attr.Name.HasReferences() {
			if err := checkCapabilityName(name, "attr"); err != nil {
				errs.Add(WrapError(KindSchemaViolation, attrPath+".name", err))
				continue
			}
		}
		capability := capabilityBase(name)
		resolved := AttributeRequirement{Name: name}
		resolved.AnyOf = resolveAttributeValues(attr.AnyOf, capability, symtab, attrPath+".anyOf", &errs)
		resolved.AllOf = resolveAttributeValues(attr.AllOf, capability, symtab, attrPath+".allOf", &errs)
		out.Attributes = append(out.Attributes, resolved)
	}

	return out, errs.AsError()
}

func resolveAttributeValues(values []*expr.FormatString, capability string, symtab SymbolTable, path string, errs *ErrorList) []string {
	var out []string
	for i, fs := range values {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		value, err := fs.Resolve(symtab)
		if err != nil {
			errs.Add(WrapError(KindSymbolResolution, itemPath, err))
			continue
		}
		if fs.HasReferences() {
			if err := checkAttributeValue(capability, value); err != nil {
				errs.Add(WrapError(KindSchemaViolation, itemPath, err))
				continue
			}
		}
		out = append(out, value)
	}
	return out
}
