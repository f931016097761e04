package domain

// ValidationCheck is one pre-deploy gate check result
type ValidationCheck struct {
	Name     string `json:"name"`
	Platform string `json:"platform,omitempty"`
	Required bool   `json:"required"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
}

// ValidationReport collects the pre-deploy gate results
type ValidationReport struct {
	Checks []ValidationCheck `json:"checks"`
}

// AddPass records a passing check
func (r *ValidationReport) AddPass(name, platform, detail string) {
	r.Checks = append(r.Checks, ValidationCheck{
		Name: name, Platform: platform, Required: true, Passed: true, Detail: detail,
	})
}

// AddFailure records a failing required check
func (r *ValidationReport) AddFailure(name, platform, detail string) {
	r.Checks = append(r.Checks, ValidationCheck{
		Name: name, Platform: platform, Required: true, Passed: false, Detail: detail,
	})
}

// AddWarning records a failing non-required check
func (r *ValidationReport) AddWarning(name, platform, detail string) {
	r.Checks = append(r.Checks, ValidationCheck{
		Name: name, Platform: platform, Required: false, Passed: false, Detail: detail,
	})
}

// HasBlockingFailure returns true if any required check failed
func (r *ValidationReport) HasBlockingFailure() bool {
	for _, check := range r.Checks {
		if check.Required && !check.Passed {
			return true
		}
	}
	return false
}

// FirstFailure returns the first failing required check, if any
func (r *ValidationReport) FirstFailure() *ValidationCheck {
	for i, check := range r.Checks {
		if check.Required && !check.Passed {
			return &r.Checks[i]
		}
	}
	return nil
}

// Warnings returns all failing non-required checks
func (r *ValidationReport) Warnings() []ValidationCheck {
	var warnings []ValidationCheck
	for _, check := range r.Checks {
		if !check.Required && !check.Passed {
			warnings = append(warnings, check)
		}
	}
	return warnings
}
