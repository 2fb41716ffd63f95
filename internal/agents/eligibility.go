package agents

// EligibilityAgent implements the eligibility role. Program rules are
// deterministic constants, not cache-driven: the benefits cache supplies
// descriptive/contact fields for the HTTP façade's /benefits listing,
// while eligibility itself is computed here.
type EligibilityAgent struct{}

// Check evaluates the fixed program rule set against income level.
func (a *EligibilityAgent) Check(req EligibilityRequest) (*EligibilityResponse, error) {
	resp := &EligibilityResponse{}

	lowIncome := req.IncomeLevel == "low" || req.IncomeLevel == "very_low" || req.IncomeLevel == "none"
	if lowIncome {
		resp.Programs = append(resp.Programs, EligibilityProgram{Name: "Medi-Cal", MonthlyValue: 0})
		resp.NextSteps = append(resp.NextSteps, "Apply for Medi-Cal coverage immediately")
	}

	resp.Programs = append(resp.Programs, EligibilityProgram{Name: "General Assistance", MonthlyValue: 588})
	resp.NextSteps = append(resp.NextSteps, "Submit GA application at the county social services office")

	resp.Programs = append(resp.Programs, EligibilityProgram{Name: "SNAP", MonthlyValue: 281})
	resp.NextSteps = append(resp.NextSteps, "Apply for CalFresh benefits")

	resp.Programs = append(resp.Programs, EligibilityProgram{Name: "Housing Assistance", MonthlyValue: 0, WaitlistOnly: true})
	resp.NextSteps = append(resp.NextSteps, "Join housing assistance waitlist")

	// Disability benefits are never auto-eligible; only surfaced, with
	// RequiresReview set, when the intake already lists the case among
	// current benefits under consideration.
	for _, b := range req.CurrentBenefits {
		if b == "disability" || b == "disability-benefits" {
			resp.Programs = append(resp.Programs, EligibilityProgram{Name: "Disability Benefits", MonthlyValue: 0, RequiresReview: true})
		}
	}

	for _, p := range resp.Programs {
		resp.TotalMonthlyBenefits += p.MonthlyValue
		if p.RequiresReview {
			resp.RequiresManualReview = true
		}
	}

	return resp, nil
}
