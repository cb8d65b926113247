package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
	"github.com/upb/governance-gateway/services"
)

// forbiddenFields are the free-text field names that must never appear in
// request metadata, at any nesting depth. The gateway handles metadata only;
// raw content smuggled under these keys is rejected outright.
var forbiddenFields = map[string]struct{}{
	"prompt":   {},
	"text":     {},
	"input":    {},
	"message":  {},
	"messages": {},
	"content":  {},
}

// Evaluation is the outcome of scoring one request against a customer's
// active policies.
type Evaluation struct {
	RiskScore      int
	TriggeredRules []string
}

// ruleFunc reports whether one rule fires against the request.
type ruleFunc func(cfg json.RawMessage, req *models.CheckRequest) (bool, error)

// Evaluator scores requests against per-customer governance policies.
// Rule kinds form a closed set dispatched through a table; an unknown kind
// or malformed parameters fail the evaluation rather than being skipped.
type Evaluator struct {
	policies  repositories.PolicyRepository
	customers repositories.CustomerRepository
	cache     *PolicyCache
	logger    *zap.Logger
	dispatch  map[models.RuleType]ruleFunc
}

// NewEvaluator creates a policy evaluator. The cache is optional; pass nil
// to read the policy store on every request.
func NewEvaluator(policies repositories.PolicyRepository, customers repositories.CustomerRepository, cache *PolicyCache, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		policies:  policies,
		customers: customers,
		cache:     cache,
		logger:    logger,
		dispatch: map[models.RuleType]ruleFunc{
			models.RuleTypePersonalData:       evalPersonalData,
			models.RuleTypeExternalModel:      evalExternalModel,
			models.RuleTypeSizeCeiling:        evalSizeCeiling,
			models.RuleTypeOperationAllowList: evalOperationAllowList,
		},
	}
}

// Evaluate validates the request metadata and scores it against the
// customer's active policies. Scoring is additive with a fixed weight per
// rule kind; a kind contributes at most once regardless of how many
// policies declare it or how many operations match. Triggered rule names
// are reported in declaration order.
func (e *Evaluator) Evaluate(ctx context.Context, customerID uuid.UUID, req *models.CheckRequest) (*Evaluation, error) {
	// Forbidden-field validation runs before any scoring and supersedes it.
	if field, found := findForbiddenField(req.Context); found {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "request contains forbidden content field", nil).
			WithDetail("field", field)
	}

	policies, err := e.activePolicies(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if len(policies) == 0 {
		return e.evaluateDefaultPolicy(ctx, customerID, req)
	}

	eval := &Evaluation{TriggeredRules: []string{}}
	scored := make(map[models.RuleType]bool)

	for _, p := range policies {
		for _, rule := range p.Rules {
			// A kind that already contributed is settled. One that was
			// evaluated but did not fire is checked again under each later
			// declaration, since a stricter parameter set may still catch it.
			if scored[rule.Type] {
				continue
			}
			fn, ok := e.dispatch[rule.Type]
			if !ok {
				e.logger.Error("unknown rule kind in policy",
					zap.String("policy_id", p.ID.String()),
					zap.String("rule_type", string(rule.Type)))
				return nil, services.NewDomainError(services.ErrorTypeInternal,
					fmt.Sprintf("unknown rule kind %q", rule.Type), nil)
			}
			triggered, err := fn(rule.Config, req)
			if err != nil {
				e.logger.Error("malformed rule parameters",
					zap.String("policy_id", p.ID.String()),
					zap.String("rule_type", string(rule.Type)),
					zap.Error(err))
				return nil, services.NewDomainError(services.ErrorTypeInternal,
					fmt.Sprintf("malformed parameters for rule %q", rule.Type), err)
			}
			if triggered {
				scored[rule.Type] = true
				eval.RiskScore += models.RuleWeight(rule.Type)
				eval.TriggeredRules = append(eval.TriggeredRules, string(rule.Type))
			}
		}
	}

	return eval, nil
}

// InvalidateCustomer drops the customer's cached policy set, forcing the
// next evaluation to re-read the store.
func (e *Evaluator) InvalidateCustomer(customerID uuid.UUID) {
	if e.cache != nil {
		e.cache.Invalidate(customerID)
	}
}

// defaultRuleSet is the baseline screening applied when a customer has no
// stored policies. The flag-driven checks run with their zero-value
// parameters, so only request metadata can trip them.
var defaultRuleSet = []models.RuleType{
	models.RuleTypePersonalData,
	models.RuleTypeExternalModel,
}

// evaluateDefaultPolicy handles a customer with zero active policies.
// Absence of policy is not absence of screening: the implicit default
// policy still scores the baseline rule set, so a request that flags
// personal data is blocked even for an unconfigured tenant. A customer
// in strict mode gets no implicit policy at all and is blocked outright.
func (e *Evaluator) evaluateDefaultPolicy(ctx context.Context, customerID uuid.UUID, req *models.CheckRequest) (*Evaluation, error) {
	customer, err := e.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeUnavailable, "customer store unavailable", err)
	}
	if customer != nil && customer.StrictMode {
		return nil, services.NewDomainError(services.ErrorTypeUnavailable, "no active policy for customer", nil).
			WithDetail("customer_id", customerID.String())
	}

	eval := &Evaluation{TriggeredRules: []string{}}
	for _, kind := range defaultRuleSet {
		triggered, err := e.dispatch[kind](nil, req)
		if err != nil {
			return nil, services.NewDomainError(services.ErrorTypeInternal,
				fmt.Sprintf("malformed parameters for rule %q", kind), err)
		}
		if triggered {
			eval.RiskScore += models.RuleWeight(kind)
			eval.TriggeredRules = append(eval.TriggeredRules, string(kind))
		}
	}
	return eval, nil
}

func (e *Evaluator) activePolicies(ctx context.Context, customerID uuid.UUID) ([]*models.Policy, error) {
	if e.cache != nil {
		if cached, ok := e.cache.GetPolicies(customerID); ok {
			return cached, nil
		}
	}

	policies, err := e.policies.GetActiveByCustomerID(ctx, customerID)
	if err != nil {
		e.logger.Error("policy lookup failed",
			zap.String("customer_id", customerID.String()),
			zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeUnavailable, "policy store unavailable", err)
	}

	if e.cache != nil {
		e.cache.SetPolicies(customerID, policies)
	}
	return policies, nil
}

// findForbiddenField walks the metadata mapping recursively, descending
// into nested mappings and lists, and returns the first forbidden key hit.
// Key comparison is case-insensitive.
func findForbiddenField(value interface{}) (string, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, nested := range v {
			if _, bad := forbiddenFields[strings.ToLower(key)]; bad {
				return key, true
			}
			if field, found := findForbiddenField(nested); found {
				return field, true
			}
		}
	case []interface{}:
		for _, item := range v {
			if field, found := findForbiddenField(item); found {
				return field, true
			}
		}
	}
	return "", false
}

// Rule implementations

func evalPersonalData(_ json.RawMessage, req *models.CheckRequest) (bool, error) {
	if contextFlag(req.Context, "contains_personal_data") {
		return true, nil
	}
	return containsIdentifyingData(req.Context), nil
}

func evalExternalModel(cfg json.RawMessage, req *models.CheckRequest) (bool, error) {
	if contextFlag(req.Context, "is_external_model") {
		return true, nil
	}
	if len(cfg) == 0 {
		return false, nil
	}

	var params models.ExternalModelConfig
	if err := json.Unmarshal(cfg, &params); err != nil {
		return false, err
	}
	if len(params.ApprovedProviders) == 0 && len(params.ApprovedModels) == 0 {
		return false, nil
	}

	for _, op := range req.Operations {
		if len(params.ApprovedProviders) > 0 && op.Provider != "" && !containsString(params.ApprovedProviders, op.Provider) {
			return true, nil
		}
		if len(params.ApprovedModels) > 0 && op.Model != "" && !containsString(params.ApprovedModels, op.Model) {
			return true, nil
		}
	}
	return false, nil
}

func evalSizeCeiling(cfg json.RawMessage, req *models.CheckRequest) (bool, error) {
	if len(cfg) == 0 {
		return false, nil
	}
	var params models.SizeCeilingConfig
	if err := json.Unmarshal(cfg, &params); err != nil {
		return false, err
	}
	if params.MaxTokens <= 0 {
		return false, nil
	}
	return req.TotalTokens() > params.MaxTokens, nil
}

func evalOperationAllowList(cfg json.RawMessage, req *models.CheckRequest) (bool, error) {
	if len(cfg) == 0 {
		return false, nil
	}
	var params models.OperationAllowListConfig
	if err := json.Unmarshal(cfg, &params); err != nil {
		return false, err
	}
	if len(params.Operations) == 0 {
		return false, nil
	}
	for _, op := range req.Operations {
		if !containsString(params.Operations, op.Type) {
			return true, nil
		}
	}
	return false, nil
}

// contextFlag reports whether the metadata key holds a truthy flag.
func contextFlag(ctx map[string]interface{}, key string) bool {
	v, ok := ctx[key]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
